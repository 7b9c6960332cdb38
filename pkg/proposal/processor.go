package proposal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/deedgrid/spine/pkg/contracts"
	"github.com/deedgrid/spine/pkg/decision"
	"github.com/deedgrid/spine/pkg/store"
)

// ErrRequiresHumanReview is returned for proposals flagged for review; they
// are never executed automatically.
var ErrRequiresHumanReview = errors.New("proposal: requires human review")

// ErrUnsupportedCommand is returned when no applier exists for a proposal's
// command type.
var ErrUnsupportedCommand = errors.New("proposal: no applier for command type")

// Applier turns a guard-approved command into the actual event append. The
// guard has already verified the context; appliers must not re-derive
// permission on their own.
type Applier interface {
	Apply(ctx context.Context, dc contracts.DecisionContext, cmd contracts.CommandResolution, p contracts.ProposedCommand) error
}

// AdvanceApplier appends the TransactionStateAdvanced event for an approved
// advance_to_closing command.
type AdvanceApplier struct {
	Events store.EventStore
	Clock  decision.Clock
}

// Apply appends the state-advance event.
func (a AdvanceApplier) Apply(ctx context.Context, dc contracts.DecisionContext, cmd contracts.CommandResolution, p contracts.ProposedCommand) error {
	now := time.Now().UTC()
	if a.Clock != nil {
		now = a.Clock.Now()
	}
	return a.Events.Append(ctx, contracts.Event{
		EntityType: contracts.EntityTransaction,
		EntityID:   dc.TransactionID,
		EventType:  contracts.EventTransactionStateAdvanced,
		Payload:    map[string]any{"to_state": string(contracts.StateClosing)},
		OccurredAt: now,
		ActorID:    dc.ActorID,
	})
}

// Processor drains a queue, validates each proposal through the Guard, and
// applies approved commands. Anything that cannot be executed goes to the
// dead-letter channel.
type Processor struct {
	guard    *decision.Guard
	appliers map[contracts.CommandType]Applier
	dead     chan<- DeadLetter
	logger   *slog.Logger
}

// NewProcessor creates a processor. The dead channel may be nil, in which
// case failures are only logged.
func NewProcessor(guard *decision.Guard, dead chan<- DeadLetter, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		guard:    guard,
		appliers: make(map[contracts.CommandType]Applier),
		dead:     dead,
		logger:   logger,
	}
}

// Register wires an applier for a command type.
func (p *Processor) Register(t contracts.CommandType, a Applier) {
	p.appliers[t] = a
}

// Process validates and executes one proposal. The guard re-derives the
// decision context from the event log as of now; a stale or overreaching
// proposal fails here rather than executing.
func (p *Processor) Process(ctx context.Context, prop contracts.ProposedCommand) error {
	if prop.RequiresHumanReview {
		return fmt.Errorf("%w: %s", ErrRequiresHumanReview, prop.ProposalID)
	}

	var (
		dc  contracts.DecisionContext
		cmd contracts.CommandResolution
		err error
	)
	switch prop.Type {
	case contracts.CommandIssueAttestation:
		dc, cmd, err = p.guard.AttestationIssuance(ctx, prop.ActorID, prop.TransactionID, prop.AttestationType)
	case contracts.CommandWithdrawAttestation:
		dc, cmd, err = p.guard.AttestationWithdrawal(ctx, prop.ActorID, prop.TransactionID, prop.AttestationType)
	default:
		dc, cmd, err = p.guard.Command(ctx, prop.ActorID, prop.TransactionID, prop.Type)
	}
	if err != nil {
		return err
	}

	applier, ok := p.appliers[cmd.Type]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd.Type)
	}
	if err := applier.Apply(ctx, dc, cmd, prop); err != nil {
		return fmt.Errorf("proposal %s: apply %s: %w", prop.ProposalID, cmd.Type, err)
	}
	p.logger.Info("proposal executed",
		"proposal_id", prop.ProposalID, "command", cmd.Type, "transaction_id", prop.TransactionID)
	return nil
}

// Run drains the queue until the context ends, dead-lettering failures.
func (p *Processor) Run(ctx context.Context, q Queue) {
	for {
		prop, err := q.Next(ctx)
		if err != nil {
			return
		}
		if err := p.Process(ctx, prop); err != nil {
			p.deadLetter(prop, err)
		}
	}
}

func (p *Processor) deadLetter(prop contracts.ProposedCommand, err error) {
	p.logger.Warn("proposal dead-lettered",
		"proposal_id", prop.ProposalID, "transaction_id", prop.TransactionID, "err", err)
	if p.dead == nil {
		return
	}
	select {
	case p.dead <- DeadLetter{Proposal: prop, Err: err, At: time.Now().UTC()}:
	default:
		p.logger.Error("dead-letter channel full, dropping record", "proposal_id", prop.ProposalID)
	}
}
