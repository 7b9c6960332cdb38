package contracts

import "time"

// ProposedCommand is a non-binding, agent-suggested command. Proposals carry
// no authority of their own: they must pass the Guard before becoming a real
// event, and agents never call the event store directly.
type ProposedCommand struct {
	ProposalID          string          `json:"proposal_id"`
	ActorID             string          `json:"actor_id"`
	TransactionID       string          `json:"transaction_id"`
	Type                CommandType     `json:"type"`
	AttestationType     AttestationType `json:"attestation_type,omitempty"`
	Justification       string          `json:"justification"`
	Payload             map[string]any  `json:"payload,omitempty"`
	RequiresHumanReview bool            `json:"requires_human_review"`
	SubmittedAt         time.Time       `json:"submitted_at"`
}
