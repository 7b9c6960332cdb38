package decision

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/deedgrid/spine/pkg/canonicalize"
	"github.com/deedgrid/spine/pkg/contracts"
	"github.com/deedgrid/spine/pkg/law"
)

// ViolationError reports a rejected command attempt, carrying both what the
// caller declared and what the spine freshly resolved so the audit trail shows
// exactly what was denied and why.
type ViolationError struct {
	ActorID       string
	TransactionID string
	Declared      contracts.CommandResolution
	Resolved      contracts.CommandResolution
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("guard: actor %s may not %s on transaction %s: resolved command is %s (%s)",
		e.ActorID, describe(e.Declared), e.TransactionID, e.Resolved.Type, e.Resolved.Reason)
}

func describe(r contracts.CommandResolution) string {
	switch r.Type {
	case contracts.CommandIssueAttestation, contracts.CommandWithdrawAttestation:
		return fmt.Sprintf("%s[%s]", r.Type, r.AttestationType)
	default:
		return string(r.Type)
	}
}

// Guard gates every write. It rebuilds the decision context from the current
// event log immediately before acting and rejects when the caller's declared
// intent does not match the freshly resolved command, closing the
// time-of-check/time-of-use window between UI rendering and execution.
type Guard struct {
	builder *Builder
	audit   *AuditLog
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewGuard creates a guard over the builder. The audit log is optional.
func NewGuard(builder *Builder, audit *AuditLog) *Guard {
	return &Guard{
		builder: builder,
		audit:   audit,
		logger:  slog.Default(),
		tracer:  otel.Tracer("spine/decision"),
	}
}

// SetLogger replaces the guard's logger.
func (g *Guard) SetLogger(logger *slog.Logger) {
	if logger != nil {
		g.logger = logger
	}
}

// Command verifies that expected is the single command currently resolved for
// the actor. On success it returns the verified context and resolution for the
// caller to proceed with the actual event append.
func (g *Guard) Command(ctx context.Context, actorID, transactionID string, expected contracts.CommandType) (contracts.DecisionContext, contracts.CommandResolution, error) {
	return g.verify(ctx, actorID, transactionID, expected, "")
}

// AttestationIssuance verifies an intended issue_attestation command,
// including the attestation type.
func (g *Guard) AttestationIssuance(ctx context.Context, actorID, transactionID string, attType contracts.AttestationType) (contracts.DecisionContext, contracts.CommandResolution, error) {
	return g.verify(ctx, actorID, transactionID, contracts.CommandIssueAttestation, attType)
}

// AttestationWithdrawal verifies an intended withdraw_attestation command,
// including the attestation type.
func (g *Guard) AttestationWithdrawal(ctx context.Context, actorID, transactionID string, attType contracts.AttestationType) (contracts.DecisionContext, contracts.CommandResolution, error) {
	return g.verify(ctx, actorID, transactionID, contracts.CommandWithdrawAttestation, attType)
}

func (g *Guard) verify(ctx context.Context, actorID, transactionID string, expected contracts.CommandType, attType contracts.AttestationType) (contracts.DecisionContext, contracts.CommandResolution, error) {
	ctx, span := g.tracer.Start(ctx, "decision.Guard",
		trace.WithAttributes(
			attribute.String("transaction_id", transactionID),
			attribute.String("expected_command", string(expected)),
		))
	defer span.End()

	// Fresh context as of now, never a result computed earlier in the request.
	dc := g.builder.Build(ctx, actorID, transactionID)
	resolved := law.Resolve(dc)

	if !resolved.Matches(expected, attType) {
		declared := contracts.CommandResolution{Type: expected, AttestationType: attType}
		violation := &ViolationError{
			ActorID:       actorID,
			TransactionID: transactionID,
			Declared:      declared,
			Resolved:      resolved,
		}
		g.record(actorID, transactionID, "GUARD_DENY", violation)
		g.logger.Warn("guard denied command",
			"actor_id", actorID, "transaction_id", transactionID,
			"declared", describe(declared), "resolved", describe(resolved))
		return contracts.DecisionContext{}, contracts.CommandResolution{}, violation
	}

	g.record(actorID, transactionID, "GUARD_ALLOW", resolved)
	return dc, resolved, nil
}

func (g *Guard) record(actorID, transactionID, action string, details any) {
	if g.audit == nil {
		return
	}
	detailJSON, err := canonicalize.JCS(details)
	if err != nil {
		detailJSON = []byte(fmt.Sprintf("%v", details))
	}
	if _, err := g.audit.Append(actorID, transactionID, action, string(detailJSON)); err != nil {
		g.logger.Error("audit append failed", "action", action, "err", err)
	}
}
