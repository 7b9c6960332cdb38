// Package role derives a participant role from a folded authority scope.
// Derivation is the only path to a role: the spine never trusts caller- or
// node-supplied role metadata.
package role

import "github.com/deedgrid/spine/pkg/contracts"

// rolePredicates pairs each role with the single scope predicate that selects
// it, as an exhaustive table over the closed role set.
var rolePredicates = []struct {
	role  contracts.Role
	holds func(contracts.AuthorityScope) bool
}{
	{contracts.RoleAgent, contracts.AuthorityScope.MayAdvanceToClosing},
	{contracts.RoleLender, mayIssue(contracts.AttestationLoanClearedToClose)},
	{contracts.RoleTitle, mayIssue(contracts.AttestationTitleClearToClose)},
	{contracts.RoleInsurance, mayIssue(contracts.AttestationBinderIssued)},
}

func mayIssue(t contracts.AttestationType) func(contracts.AuthorityScope) bool {
	token := contracts.IssueToken(t)
	return func(s contracts.AuthorityScope) bool { return s.Has(token) }
}

// Derive maps a scope to exactly one role. If zero predicates hold, or more
// than one holds, it fails closed: (RoleNone, false). Ambiguous authority is a
// first-class outcome, not an error.
func Derive(scope contracts.AuthorityScope) (contracts.Role, bool) {
	derived := contracts.RoleNone
	matches := 0
	for _, p := range rolePredicates {
		if p.holds(scope) {
			derived = p.role
			matches++
		}
	}
	if matches != 1 {
		return contracts.RoleNone, false
	}
	return derived, true
}
