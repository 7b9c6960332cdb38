package fold

import "github.com/deedgrid/spine/pkg/contracts"

// DetectBlocking scans events and attestations once and returns every distinct
// blocking kind present, ordered by the fixed enumeration priority of
// contracts.BlockingKinds rather than by occurrence time. The first element is
// the primary reason surfaced on the decision context; the full list exists so
// audit consumers see simultaneous blockers. An empty result means nothing
// blocks.
func DetectBlocking(events []contracts.Event, attestations []contracts.Attestation) []contracts.BlockingKind {
	present := map[contracts.BlockingKind]bool{}
	for _, e := range events {
		switch e.EventType {
		case contracts.EventAuthorityRevoked:
			present[contracts.BlockAuthorityRevoked] = true
		case contracts.EventContingencyFailed:
			present[contracts.BlockContingencyFailed] = true
		}
	}
	for _, a := range attestations {
		switch a.Type {
		case contracts.AttestationFinancingWithdrawn:
			present[contracts.BlockFinancingWithdrawn] = true
		case contracts.AttestationTitleDefectDetected:
			present[contracts.BlockTitleDefectDetected] = true
		case contracts.AttestationCoverageWithdrawn:
			present[contracts.BlockCoverageWithdrawn] = true
		}
	}
	var found []contracts.BlockingKind
	for _, kind := range contracts.BlockingKinds {
		if present[kind] {
			found = append(found, kind)
		}
	}
	return found
}

// HasUnresolvedContingencies folds the contingency counter: created events
// increment, resolved and failed events decrement. Only counter > 0 is ever
// checked, so excess resolutions are absorbed rather than driving the
// effective count negative.
func HasUnresolvedContingencies(events []contracts.Event) bool {
	counter := 0
	for _, e := range ordered(events) {
		switch e.EventType {
		case contracts.EventContingencyCreated:
			counter++
		case contracts.EventContingencyResolved, contracts.EventContingencyFailed:
			if counter > 0 {
				counter--
			}
		}
	}
	return counter > 0
}
