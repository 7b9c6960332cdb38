package contracts

import "time"

// AttestationType identifies a signed fact asserted by a federated node.
type AttestationType string

const (
	AttestationLoanClearedToClose  AttestationType = "LoanClearedToClose"
	AttestationTitleClearToClose   AttestationType = "TitleClearToClose"
	AttestationBinderIssued        AttestationType = "BinderIssued"
	AttestationAuthorityVerified   AttestationType = "AuthorityVerified"
	AttestationFinancingWithdrawn  AttestationType = "FinancingWithdrawn"
	AttestationTitleDefectDetected AttestationType = "TitleDefectDetected"
	AttestationCoverageWithdrawn   AttestationType = "CoverageWithdrawn"
)

// Valid reports whether t is a member of the closed attestation-type set.
func (t AttestationType) Valid() bool {
	switch t {
	case AttestationLoanClearedToClose, AttestationTitleClearToClose,
		AttestationBinderIssued, AttestationAuthorityVerified,
		AttestationFinancingWithdrawn, AttestationTitleDefectDetected,
		AttestationCoverageWithdrawn:
		return true
	}
	return false
}

// CurrencyWindow is the trailing window within which the latest attestation of
// a type is considered current. Older attestations are superseded, not deleted.
const CurrencyWindow = 30 * 24 * time.Hour

// AttestationPayload is the fixed payload schema of an attestation.
// Absent optional fields default to the permissive interpretation: no
// expiration means the attestation does not expire, no conditions means it is
// unconditional.
type AttestationPayload struct {
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	Conditions     []string   `json:"conditions,omitempty"`
	Conditional    bool       `json:"conditional,omitempty"`
}

// IsConditional reports whether the payload marks itself conditional, either
// explicitly or by carrying conditions.
func (p AttestationPayload) IsConditional() bool {
	return p.Conditional || len(p.Conditions) > 0
}

// Attestation is a verified signed fact from a federated node. Instances only
// exist past the federation trust boundary; an attestation whose signature did
// not verify never becomes one.
type Attestation struct {
	AttestationID     string             `json:"attestation_id"`
	IssuingNodeID     string             `json:"issuing_node_id"`
	Type              AttestationType    `json:"attestation_type"`
	EntityFingerprint string             `json:"entity_fingerprint"`
	Payload           AttestationPayload `json:"payload"`
	DocumentHashes    []string           `json:"document_hashes,omitempty"`
	IssuedAt          time.Time          `json:"issued_at"`
	Signature         string             `json:"signature"`
}

// Current reports whether the attestation falls inside the currency window.
func (a Attestation) Current(now time.Time) bool {
	return !a.IssuedAt.Before(now.Add(-CurrencyWindow))
}
