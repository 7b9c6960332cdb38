package federation

import (
	"github.com/deedgrid/spine/pkg/contracts"
)

// SignalKind classifies the readiness impact of a verified fact.
type SignalKind string

const (
	SignalSatisfied SignalKind = "satisfied"
	SignalBlocking  SignalKind = "blocking"
)

// ReadinessSignal is the readiness-impact half of an interpretation.
type ReadinessSignal struct {
	Kind   SignalKind
	Reason string
}

// Interpretation is what a verified external fact means to the spine. A fact
// maps to at most one readiness signal and/or one proposed command; it is
// never executed directly. Advisory facts carry neither.
type Interpretation struct {
	Signal              *ReadinessSignal
	Proposal            *contracts.ProposedCommand
	RequiresHumanReview bool
	Advisory            bool
}

// Interpret classifies a verified fact. Positive clearances are satisfied
// signals. Withdrawal and defect facts are blocking signals and additionally
// yield a proposed withdrawal of the corresponding clearance, which still has
// to pass the Guard before anything happens; defects always require human
// review. AuthorityVerified is advisory context only.
func Interpret(fact Fact, node Node) Interpretation {
	switch fact.Type {
	case contracts.AttestationLoanClearedToClose,
		contracts.AttestationTitleClearToClose,
		contracts.AttestationBinderIssued:
		return Interpretation{Signal: &ReadinessSignal{
			Kind:   SignalSatisfied,
			Reason: string(fact.Type) + " attested by " + node.ID,
		}}

	case contracts.AttestationFinancingWithdrawn:
		return withdrawalInterpretation(fact, node, contracts.BlockFinancingWithdrawn, contracts.AttestationLoanClearedToClose, false)
	case contracts.AttestationCoverageWithdrawn:
		return withdrawalInterpretation(fact, node, contracts.BlockCoverageWithdrawn, contracts.AttestationBinderIssued, false)
	case contracts.AttestationTitleDefectDetected:
		return withdrawalInterpretation(fact, node, contracts.BlockTitleDefectDetected, contracts.AttestationTitleClearToClose, true)

	case contracts.AttestationAuthorityVerified:
		return Interpretation{Advisory: true}

	default:
		// Unknown types stay advisory so forward-compatible nodes cannot
		// block a transaction with a type this version does not understand.
		return Interpretation{Advisory: true}
	}
}

func withdrawalInterpretation(fact Fact, node Node, block contracts.BlockingKind, withdraws contracts.AttestationType, review bool) Interpretation {
	return Interpretation{
		Signal: &ReadinessSignal{Kind: SignalBlocking, Reason: block.Reason()},
		Proposal: &contracts.ProposedCommand{
			ActorID:             node.ID,
			Type:                contracts.CommandWithdrawAttestation,
			AttestationType:     withdraws,
			Justification:       string(fact.Type) + " reported by " + node.ID,
			RequiresHumanReview: review,
			SubmittedAt:         fact.IssuedAt,
		},
		RequiresHumanReview: review,
	}
}

// contractsType validates an attestation type string from the wire, returning
// the zero value for unknown types.
func contractsType(s string) contracts.AttestationType {
	t := contracts.AttestationType(s)
	if !t.Valid() {
		return ""
	}
	return t
}
