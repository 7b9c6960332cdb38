// Package fold contains the pure replay functions of the spine. Each fold
// takes an ordered slice of immutable events and derives state; folding the
// same list twice always yields the same result, and events proposing illegal
// transitions are dropped silently rather than failing the fold.
package fold

import (
	"sort"

	"github.com/deedgrid/spine/pkg/contracts"
)

// legalTransitions is the explicit transition table of the transaction
// lifecycle FSM. Every (from, to) pair not present here is illegal and the
// proposing event is ignored. Terminal states have no entries.
var legalTransitions = map[contracts.TransactionState]map[contracts.TransactionState]bool{
	contracts.StateInitiated: {
		contracts.StateQualified: true,
		contracts.StateFailed:    true,
	},
	contracts.StateQualified: {
		contracts.StateOfferIssued: true,
		contracts.StateFailed:      true,
	},
	contracts.StateOfferIssued: {
		contracts.StateUnderContract: true,
		contracts.StateFailed:        true,
	},
	contracts.StateUnderContract: {
		contracts.StateClosing: true,
		contracts.StateFailed:  true,
	},
	contracts.StateClosing: {
		contracts.StateCompleted: true,
		contracts.StateFailed:    true,
	},
}

// LegalTransition reports whether (from, to) is in the transition table.
func LegalTransition(from, to contracts.TransactionState) bool {
	return legalTransitions[from][to]
}

// TransactionState folds the lifecycle state from the event list, starting at
// initiated. Events are applied in occurred_at ascending order regardless of
// slice order. Unknown event types and malformed payloads are ignored.
func TransactionState(events []contracts.Event) contracts.TransactionState {
	state := contracts.StateInitiated
	for _, e := range ordered(events) {
		payload, ok := e.DecodeStateAdvanced()
		if !ok {
			continue
		}
		if !LegalTransition(state, payload.ToState) {
			continue
		}
		state = payload.ToState
	}
	return state
}

// ordered returns a copy of events sorted by occurred_at ascending, with the
// original slice order as a stable tie-break.
func ordered(events []contracts.Event) []contracts.Event {
	out := make([]contracts.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out
}
