// Package decision orchestrates the spine: it builds the immutable decision
// context for an (actor, transaction) pair and gates writes behind the Guard.
// Every failure mode in here converges to "no effective authority"; the
// builder never leaks an error or a panic in place of a decision.
package decision

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/deedgrid/spine/pkg/canonicalize"
	"github.com/deedgrid/spine/pkg/contracts"
	"github.com/deedgrid/spine/pkg/fold"
	"github.com/deedgrid/spine/pkg/law"
	"github.com/deedgrid/spine/pkg/readiness"
	"github.com/deedgrid/spine/pkg/role"
	"github.com/deedgrid/spine/pkg/store"
)

// Clock provides the time readiness and authority expiry are evaluated at.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }

const (
	// ReasonUnverifiable is the generic fallback reason when the context
	// cannot be built at all (I/O failure, panic).
	ReasonUnverifiable = "Unable to verify transaction context"

	// ReasonNoRole covers absent or ambiguous authority.
	ReasonNoRole = "Unable to derive a participant role from current authority"
)

// Builder derives decision contexts from the current event log and
// attestation store. Builders are stateless and safe for concurrent use.
type Builder struct {
	events store.EventStore
	atts   store.AttestationStore
	clock  Clock
	logger *slog.Logger
	tracer trace.Tracer
}

// NewBuilder creates a builder. If clock is nil a wall clock is used.
func NewBuilder(events store.EventStore, atts store.AttestationStore, clock Clock) *Builder {
	if clock == nil {
		clock = wallClock{}
	}
	return &Builder{
		events: events,
		atts:   atts,
		clock:  clock,
		logger: slog.Default(),
		tracer: otel.Tracer("spine/decision"),
	}
}

// SetLogger replaces the builder's logger.
func (b *Builder) SetLogger(logger *slog.Logger) {
	if logger != nil {
		b.logger = logger
	}
}

// Build assembles the decision context for one (actor, transaction) pair.
// Pipeline order: load events, fold transaction state, fold authority, derive
// role, load attestations, evaluate contingencies, detect blocking events,
// compute readiness, assemble. Any failure anywhere replaces the whole result
// with the safe fallback context; Build never returns an error.
func (b *Builder) Build(ctx context.Context, actorID, transactionID string) (dc contracts.DecisionContext) {
	ctx, span := b.tracer.Start(ctx, "decision.Build",
		trace.WithAttributes(attribute.String("transaction_id", transactionID)))
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("decision context build panicked",
				"transaction_id", transactionID, "panic", r)
			dc = b.fallback(actorID, transactionID)
		}
	}()

	now := b.clock.Now()

	events, err := b.events.Events(ctx, contracts.EntityTransaction, transactionID)
	if err != nil {
		b.logger.Error("event load failed, failing closed",
			"transaction_id", transactionID, "err", err)
		return b.fallback(actorID, transactionID)
	}

	state := fold.TransactionState(events)
	scope := fold.Authority(events, actorID, now)

	derivedRole, ok := role.Derive(scope)
	if !ok {
		return contracts.DecisionContext{
			ActorID:          actorID,
			TransactionID:    transactionID,
			Role:             contracts.RoleNone,
			TransactionState: state,
			Readiness: contracts.ReadinessResult{
				State:   contracts.ReadinessBlocked,
				Reasons: []string{ReasonNoRole},
			},
			BlockingReason: ReasonNoRole,
			BuiltAt:        now,
		}
	}

	fingerprint := canonicalize.EntityFingerprint(contracts.EntityTransaction, transactionID)
	atts, err := b.atts.Current(ctx, fingerprint, now)
	if err != nil {
		b.logger.Error("attestation load failed, failing closed",
			"transaction_id", transactionID, "err", err)
		return b.fallback(actorID, transactionID)
	}

	contingencies := fold.HasUnresolvedContingencies(events)

	if blocking := fold.DetectBlocking(events, atts); len(blocking) > 0 {
		reasons := make([]string, 0, len(blocking))
		for _, kind := range blocking {
			reasons = append(reasons, kind.Reason())
		}
		return contracts.DecisionContext{
			ActorID:          actorID,
			TransactionID:    transactionID,
			Role:             derivedRole,
			TransactionState: state,
			Readiness: contracts.ReadinessResult{
				State:   contracts.ReadinessBlocked,
				Reasons: reasons,
			},
			Authority:               scope,
			UnresolvedContingencies: contingencies,
			BlockingReason:          blocking[0].Reason(),
			BuiltAt:                 now,
		}
	}

	result := readiness.Compute(readiness.Input{
		Lender:                  pick(atts, contracts.AttestationLoanClearedToClose),
		Title:                   pick(atts, contracts.AttestationTitleClearToClose),
		Insurance:               pick(atts, contracts.AttestationBinderIssued),
		AuthorityValid:          !scope.Empty(),
		UnresolvedContingencies: contingencies,
		Now:                     now,
	})

	return contracts.DecisionContext{
		ActorID:                 actorID,
		TransactionID:           transactionID,
		Role:                    derivedRole,
		TransactionState:        state,
		Readiness:               result,
		Authority:               scope,
		UnresolvedContingencies: contingencies,
		BuiltAt:                 now,
	}
}

// CommandResolution is the read-only decision API: safe for UI rendering,
// performs no writes.
func (b *Builder) CommandResolution(ctx context.Context, actorID, transactionID string) contracts.CommandResolution {
	return law.Resolve(b.Build(ctx, actorID, transactionID))
}

// fallback is the hard-coded safe context: non-privileged role, blocked
// readiness, empty authority.
func (b *Builder) fallback(actorID, transactionID string) contracts.DecisionContext {
	return contracts.DecisionContext{
		ActorID:          actorID,
		TransactionID:    transactionID,
		Role:             contracts.RoleNone,
		TransactionState: contracts.StateInitiated,
		Readiness: contracts.ReadinessResult{
			State:   contracts.ReadinessBlocked,
			Reasons: []string{ReasonUnverifiable},
		},
		BlockingReason: ReasonUnverifiable,
		BuiltAt:        b.clock.Now(),
	}
}

func pick(atts []contracts.Attestation, t contracts.AttestationType) *contracts.Attestation {
	for i := range atts {
		if atts[i].Type == t {
			return &atts[i]
		}
	}
	return nil
}
