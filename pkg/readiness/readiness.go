// Package readiness implements the closing-readiness state machine: a pure,
// total function from verified attestations, authority, and contingency flags
// to one of five states. Rules are evaluated in a strict priority order;
// blocked dominates everything, and ready is only reachable when no earlier
// rule fired and no conditional warnings accumulated.
package readiness

import (
	"fmt"
	"time"

	"github.com/deedgrid/spine/pkg/contracts"
)

// ExpiryWarningWindow is how far ahead an attestation expiration is surfaced
// as "expiring soon" without affecting the readiness state.
const ExpiryWarningWindow = 7 * 24 * time.Hour

// Input bundles everything the state machine evaluates. Attestation pointers
// are nil when the corresponding fact is absent or no longer current.
type Input struct {
	Lender                  *contracts.Attestation
	Title                   *contracts.Attestation
	Insurance               *contracts.Attestation
	AuthorityValid          bool
	UnresolvedContingencies bool
	Blocking                []contracts.BlockingKind
	Now                     time.Time
}

// required lists the attestation slots in their fixed evaluation order.
func (in Input) required() []struct {
	Type contracts.AttestationType
	Att  *contracts.Attestation
} {
	return []struct {
		Type contracts.AttestationType
		Att  *contracts.Attestation
	}{
		{contracts.AttestationLoanClearedToClose, in.Lender},
		{contracts.AttestationTitleClearToClose, in.Title},
		{contracts.AttestationBinderIssued, in.Insurance},
	}
}

// Compute runs the state machine. Evaluation order, first match wins:
//
//  1. Blocking events present -> blocked, all blocker reasons, return.
//  2. Any required attestation absent -> not_ready listing the missing types.
//  3. Authority invalid or unresolved contingencies -> not_ready with reasons.
//  4. Any present attestation already expired -> expired on the first one
//     found; expirations within the warning window accumulate as expiring-soon
//     without short-circuiting.
//  5. Conditional attestations accumulate warnings across all three types and
//     mark the state conditionally_ready.
//  6. Otherwise ready; ReadyToClose is exactly state == ready.
func Compute(in Input) contracts.ReadinessResult {
	if len(in.Blocking) > 0 {
		reasons := make([]string, 0, len(in.Blocking))
		for _, kind := range in.Blocking {
			reasons = append(reasons, kind.Reason())
		}
		return contracts.ReadinessResult{State: contracts.ReadinessBlocked, Reasons: reasons}
	}

	var missing []string
	for _, slot := range in.required() {
		if slot.Att == nil {
			missing = append(missing, string(slot.Type))
		}
	}
	if len(missing) > 0 {
		return contracts.ReadinessResult{State: contracts.ReadinessNotReady, Reasons: missing}
	}

	var gating []string
	if !in.AuthorityValid {
		gating = append(gating, string(contracts.AttestationAuthorityVerified))
	}
	if in.UnresolvedContingencies {
		gating = append(gating, "Unresolved contingencies remain open")
	}
	if len(gating) > 0 {
		return contracts.ReadinessResult{State: contracts.ReadinessNotReady, Reasons: gating}
	}

	var expiringSoon []contracts.AttestationType
	for _, slot := range in.required() {
		expiry := slot.Att.Payload.ExpirationDate
		if expiry == nil {
			continue
		}
		if expiry.Before(in.Now) {
			return contracts.ReadinessResult{
				State:   contracts.ReadinessExpired,
				Reasons: []string{fmt.Sprintf("%s attestation expired at %s", slot.Type, expiry.UTC().Format(time.RFC3339))},
			}
		}
		if expiry.Before(in.Now.Add(ExpiryWarningWindow)) {
			expiringSoon = append(expiringSoon, slot.Type)
		}
	}

	var warnings []string
	for _, slot := range in.required() {
		if slot.Att.Payload.IsConditional() {
			warnings = append(warnings, fmt.Sprintf("%s attestation carries unresolved conditions", slot.Type))
		}
	}
	if len(warnings) > 0 {
		return contracts.ReadinessResult{
			State:        contracts.ReadinessConditionallyReady,
			Warnings:     warnings,
			ExpiringSoon: expiringSoon,
		}
	}

	return contracts.ReadinessResult{
		State:        contracts.ReadinessReady,
		ReadyToClose: true,
		ExpiringSoon: expiringSoon,
	}
}
