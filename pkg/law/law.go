// Package law resolves, for any decision context, the single legal command the
// actor may issue, or proves that none exists. Every UI affordance and every
// write endpoint consumes this verdict; nothing constructs permission outside
// it.
package law

import "github.com/deedgrid/spine/pkg/contracts"

const (
	ReasonConditionsRequireReview = "Conditions require review before proceeding"
	ReasonWaitingOnPartners       = "Waiting on partner attestations"
	ReasonNoAuthority             = "No authority to act on this transaction"
	ReasonNoApplicableAction      = "No applicable action for current context"
	ReasonBlockedDefault          = "Transaction is blocked"
)

// Resolve is pure and total over the context. Rule order:
//
//  1. Blocked readiness dominates: none, regardless of role or authority.
//  2. Agents may advance to closing only when state is under_contract AND
//     readiness is ready AND the scope carries the advance token, all three
//     simultaneously. Conditional readiness never yields an actionable agent
//     command; flagged conditions cannot be silently overridden.
//  3. Partner roles issue before they withdraw: a party that can still attest
//     should attest, not retract. Only the first authorized type is offered so
//     the action surface stays unambiguous.
//  4. The fallback branch is unreachable for the closed role set; reaching it
//     is a defect, reported as none rather than a guess.
func Resolve(ctx contracts.DecisionContext) contracts.CommandResolution {
	if ctx.Blocked() {
		reason := ctx.BlockingReason
		if reason == "" {
			reason = ReasonBlockedDefault
		}
		return contracts.NoCommand(reason)
	}

	switch ctx.Role {
	case contracts.RoleAgent:
		if ctx.Readiness.State == contracts.ReadinessConditionallyReady {
			return contracts.NoCommand(ReasonConditionsRequireReview)
		}
		if ctx.TransactionState == contracts.StateUnderContract &&
			ctx.Readiness.State == contracts.ReadinessReady &&
			ctx.Authority.MayAdvanceToClosing() {
			return contracts.CommandResolution{Type: contracts.CommandAdvanceToClosing}
		}
		return contracts.NoCommand(ReasonWaitingOnPartners)

	case contracts.RoleLender, contracts.RoleTitle, contracts.RoleInsurance:
		if issuable := ctx.Authority.MayIssueAttestation(); len(issuable) > 0 {
			return contracts.CommandResolution{
				Type:            contracts.CommandIssueAttestation,
				AttestationType: issuable[0],
			}
		}
		if withdrawable := ctx.Authority.MayWithdrawAttestation(); len(withdrawable) > 0 {
			return contracts.CommandResolution{
				Type:            contracts.CommandWithdrawAttestation,
				AttestationType: withdrawable[0],
			}
		}
		return contracts.NoCommand(ReasonNoAuthority)

	default:
		return contracts.NoCommand(ReasonNoApplicableAction)
	}
}
