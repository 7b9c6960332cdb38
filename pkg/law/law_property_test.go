//go:build property

package law_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/deedgrid/spine/pkg/contracts"
	"github.com/deedgrid/spine/pkg/law"
)

func genContext(state contracts.ReadinessState) gopter.Gen {
	roles := []contracts.Role{
		contracts.RoleNone, contracts.RoleAgent, contracts.RoleLender,
		contracts.RoleTitle, contracts.RoleInsurance,
	}
	states := []contracts.TransactionState{
		contracts.StateInitiated, contracts.StateQualified, contracts.StateOfferIssued,
		contracts.StateUnderContract, contracts.StateClosing,
		contracts.StateCompleted, contracts.StateFailed,
	}
	tokens := []string{
		contracts.TokenAdvanceToClosing,
		contracts.IssueToken(contracts.AttestationLoanClearedToClose),
		contracts.IssueToken(contracts.AttestationTitleClearToClose),
		contracts.IssueToken(contracts.AttestationBinderIssued),
		contracts.WithdrawToken(contracts.AttestationLoanClearedToClose),
		contracts.WithdrawToken(contracts.AttestationBinderIssued),
	}
	return gopter.CombineGens(
		gen.IntRange(0, len(roles)-1),
		gen.IntRange(0, len(states)-1),
		gen.SliceOf(gen.IntRange(0, len(tokens)-1)),
	).Map(func(vals []interface{}) contracts.DecisionContext {
		var held []string
		for _, idx := range vals[2].([]int) {
			held = append(held, tokens[idx])
		}
		return contracts.DecisionContext{
			Role:             roles[vals[0].(int)],
			TransactionState: states[vals[1].(int)],
			Readiness:        contracts.ReadinessResult{State: state},
			Authority:        contracts.AuthorityScope{Tokens: held},
		}
	})
}

// A blocked context yields none for every role, state, and authority scope.
func TestBlockedAlwaysResolvesToNone(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("blocked yields none with a reason", prop.ForAll(
		func(ctx contracts.DecisionContext) bool {
			got := law.Resolve(ctx)
			return got.Type == contracts.CommandNone && got.Reason != ""
		},
		genContext(contracts.ReadinessBlocked),
	))

	properties.TestingRun(t)
}

// The advance command only ever appears for agents in under_contract with
// ready readiness and the advance token held.
func TestAdvanceOnlyUnderExactConditions(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	for _, state := range []contracts.ReadinessState{
		contracts.ReadinessNotReady, contracts.ReadinessExpired,
		contracts.ReadinessConditionallyReady, contracts.ReadinessReady,
	} {
		properties.Property("advance implies agent+under_contract+ready+token/"+string(state), prop.ForAll(
			func(ctx contracts.DecisionContext) bool {
				got := law.Resolve(ctx)
				if got.Type != contracts.CommandAdvanceToClosing {
					return true
				}
				return ctx.Role == contracts.RoleAgent &&
					ctx.TransactionState == contracts.StateUnderContract &&
					ctx.Readiness.State == contracts.ReadinessReady &&
					ctx.Authority.MayAdvanceToClosing()
			},
			genContext(state),
		))
	}

	properties.TestingRun(t)
}
