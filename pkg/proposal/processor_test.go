package proposal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deedgrid/spine/pkg/canonicalize"
	"github.com/deedgrid/spine/pkg/contracts"
	"github.com/deedgrid/spine/pkg/decision"
	"github.com/deedgrid/spine/pkg/fold"
	"github.com/deedgrid/spine/pkg/proposal"
	"github.com/deedgrid/spine/pkg/store"
)

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// harness wires an in-memory transaction an agent may advance, plus the full
// guard/processor stack over it.
type harness struct {
	events    *store.MemoryEventStore
	guard     *decision.Guard
	dead      chan proposal.DeadLetter
	processor *proposal.Processor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	events := store.NewMemoryEventStore()
	atts := store.NewMemoryAttestationStore()

	appendTxn := func(e contracts.Event) {
		e.EntityType = contracts.EntityTransaction
		e.EntityID = "txn-1"
		require.NoError(t, events.Append(ctx, e))
	}
	appendTxn(contracts.Event{
		EventType: contracts.EventAuthorityGranted,
		Payload: map[string]any{
			"actor_id": "agent-1",
			"scope":    []string{contracts.TokenAdvanceToClosing},
		},
		OccurredAt: now.Add(-72 * time.Hour),
	})
	for i, state := range []contracts.TransactionState{
		contracts.StateQualified, contracts.StateOfferIssued, contracts.StateUnderContract,
	} {
		appendTxn(contracts.Event{
			EventType:  contracts.EventTransactionStateAdvanced,
			Payload:    map[string]any{"to_state": string(state)},
			OccurredAt: now.Add(time.Duration(i-48) * time.Hour),
		})
	}

	fingerprint := canonicalize.EntityFingerprint(contracts.EntityTransaction, "txn-1")
	for _, typ := range []contracts.AttestationType{
		contracts.AttestationLoanClearedToClose,
		contracts.AttestationTitleClearToClose,
		contracts.AttestationBinderIssued,
	} {
		require.NoError(t, atts.Put(ctx, contracts.Attestation{
			AttestationID:     "att-" + string(typ),
			Type:              typ,
			EntityFingerprint: fingerprint,
			IssuedAt:          now.Add(-24 * time.Hour),
		}))
	}

	builder := decision.NewBuilder(events, atts, fixedClock{now})
	guard := decision.NewGuard(builder, decision.NewAuditLog(fixedClock{now}))
	dead := make(chan proposal.DeadLetter, 8)
	processor := proposal.NewProcessor(guard, dead, nil)
	processor.Register(contracts.CommandAdvanceToClosing, proposal.AdvanceApplier{
		Events: events,
		Clock:  fixedClock{now},
	})

	return &harness{events: events, guard: guard, dead: dead, processor: processor}
}

func advanceProposal() contracts.ProposedCommand {
	return contracts.ProposedCommand{
		ProposalID:    "prop-1",
		ActorID:       "agent-1",
		TransactionID: "txn-1",
		Type:          contracts.CommandAdvanceToClosing,
		Justification: "all attestations current",
	}
}

func TestProcessorExecutesApprovedAdvance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.processor.Process(ctx, advanceProposal()))

	events, err := h.events.Events(ctx, contracts.EntityTransaction, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, contracts.StateClosing, fold.TransactionState(events))

	last := events[len(events)-1]
	assert.Equal(t, contracts.EventTransactionStateAdvanced, last.EventType)
	assert.Equal(t, "agent-1", last.ActorID)
}

func TestProcessorRejectsOverreachingProposal(t *testing.T) {
	h := newHarness(t)

	p := advanceProposal()
	p.ActorID = "stranger"
	err := h.processor.Process(context.Background(), p)

	var violation *decision.ViolationError
	require.True(t, errors.As(err, &violation))

	events, lookupErr := h.events.Events(context.Background(), contracts.EntityTransaction, "txn-1")
	require.NoError(t, lookupErr)
	assert.Equal(t, contracts.StateUnderContract, fold.TransactionState(events))
}

func TestProcessorNeverAutoExecutesReviewFlagged(t *testing.T) {
	h := newHarness(t)

	p := advanceProposal()
	p.RequiresHumanReview = true
	err := h.processor.Process(context.Background(), p)
	assert.ErrorIs(t, err, proposal.ErrRequiresHumanReview)
}

func TestProcessorUnsupportedCommand(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Register nothing for withdraw; give the actor withdraw authority.
	require.NoError(t, h.events.Append(ctx, contracts.Event{
		EntityType: contracts.EntityTransaction,
		EntityID:   "txn-1",
		EventType:  contracts.EventAuthorityGranted,
		Payload: map[string]any{
			"actor_id": "lender-1",
			"scope":    []string{contracts.WithdrawToken(contracts.AttestationLoanClearedToClose)},
		},
		OccurredAt: now.Add(-time.Hour),
	}))

	p := contracts.ProposedCommand{
		ProposalID:      "prop-2",
		ActorID:         "lender-1",
		TransactionID:   "txn-1",
		Type:            contracts.CommandWithdrawAttestation,
		AttestationType: contracts.AttestationLoanClearedToClose,
	}
	err := h.processor.Process(ctx, p)
	assert.ErrorIs(t, err, proposal.ErrUnsupportedCommand)
}

func TestProcessorRunDeadLettersFailures(t *testing.T) {
	h := newHarness(t)
	q := proposal.NewMemoryQueue(4)
	ctx, cancel := context.WithCancel(context.Background())

	bad := advanceProposal()
	bad.ActorID = "stranger"
	require.NoError(t, q.Submit(ctx, bad))
	require.NoError(t, q.Submit(ctx, advanceProposal()))

	done := make(chan struct{})
	go func() {
		h.processor.Run(ctx, q)
		close(done)
	}()

	letter := <-h.dead
	assert.Equal(t, "stranger", letter.Proposal.ActorID)
	var violation *decision.ViolationError
	assert.True(t, errors.As(letter.Err, &violation))
	assert.False(t, letter.At.IsZero())

	// The good proposal still executes after the dead-lettered one.
	require.Eventually(t, func() bool {
		events, err := h.events.Events(context.Background(), contracts.EntityTransaction, "txn-1")
		return err == nil && fold.TransactionState(events) == contracts.StateClosing
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
