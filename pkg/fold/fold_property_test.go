//go:build property

package fold_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/deedgrid/spine/pkg/contracts"
	"github.com/deedgrid/spine/pkg/fold"
)

var allStates = []contracts.TransactionState{
	contracts.StateInitiated,
	contracts.StateQualified,
	contracts.StateOfferIssued,
	contracts.StateUnderContract,
	contracts.StateClosing,
	contracts.StateCompleted,
	contracts.StateFailed,
}

func genAdvanceEvents() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, len(allStates)-1)).Map(func(idxs []int) []contracts.Event {
		events := make([]contracts.Event, 0, len(idxs))
		for i, idx := range idxs {
			events = append(events, contracts.Event{
				EntityType: contracts.EntityTransaction,
				EntityID:   "txn-prop",
				EventType:  contracts.EventTransactionStateAdvanced,
				Payload:    map[string]any{"to_state": string(allStates[idx])},
				OccurredAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute),
			})
		}
		return events
	})
}

// Folding is a pure function of the ordered event log: the same log always
// yields the same state, and slice order is irrelevant because the fold
// orders by occurred_at.
func TestTransactionStateFoldIsDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("same log, same state", prop.ForAll(
		func(events []contracts.Event) bool {
			return fold.TransactionState(events) == fold.TransactionState(events)
		},
		genAdvanceEvents(),
	))

	properties.Property("slice order does not matter", prop.ForAll(
		func(events []contracts.Event, seed int64) bool {
			want := fold.TransactionState(events)
			shuffled := make([]contracts.Event, len(events))
			copy(shuffled, events)
			r := rand.New(rand.NewSource(seed))
			r.Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			return fold.TransactionState(shuffled) == want
		},
		genAdvanceEvents(),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

// Illegal transition events are no-ops: removing them from the log leaves the
// folded state unchanged.
func TestIllegalTransitionsAreNoOps(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("removing illegal events preserves the fold", prop.ForAll(
		func(events []contracts.Event) bool {
			want := fold.TransactionState(events)

			state := contracts.StateInitiated
			var legal []contracts.Event
			for _, e := range events {
				payload, ok := e.DecodeStateAdvanced()
				if !ok {
					continue
				}
				if fold.LegalTransition(state, payload.ToState) {
					legal = append(legal, e)
					state = payload.ToState
				}
			}
			return fold.TransactionState(legal) == want
		},
		genAdvanceEvents(),
	))

	properties.TestingRun(t)
}

// The folded state is always a member of the valid state set.
func TestFoldedStateAlwaysValid(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("fold lands on a valid state", prop.ForAll(
		func(events []contracts.Event) bool {
			return fold.TransactionState(events).Valid()
		},
		genAdvanceEvents(),
	))

	properties.TestingRun(t)
}
