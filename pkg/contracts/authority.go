package contracts

import (
	"strings"
	"time"
)

// TokenAdvanceToClosing is the permission token allowing an actor to advance a
// transaction into closing. Issue/withdraw tokens are derived per attestation
// type via IssueToken and WithdrawToken.
const TokenAdvanceToClosing = "advance_to_closing"

const (
	issueTokenPrefix    = "issue_"
	withdrawTokenPrefix = "withdraw_"
)

// IssueToken returns the permission token authorizing issuance of t.
func IssueToken(t AttestationType) string { return issueTokenPrefix + string(t) }

// WithdrawToken returns the permission token authorizing withdrawal of t.
func WithdrawToken(t AttestationType) string { return withdrawTokenPrefix + string(t) }

// AuthorityScope is the set of permission tokens an actor currently holds for
// a transaction, with an optional temporal validity window. It is derived by
// folding grant/revocation events and is never stored as a row.
type AuthorityScope struct {
	Tokens     []string   `json:"tokens,omitempty"`
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// Empty reports whether the scope holds no tokens at all.
func (s AuthorityScope) Empty() bool { return len(s.Tokens) == 0 }

// Has reports whether the scope contains the exact token.
func (s AuthorityScope) Has(token string) bool {
	for _, t := range s.Tokens {
		if t == token {
			return true
		}
	}
	return false
}

// MayAdvanceToClosing reports whether the scope carries the advance token.
func (s AuthorityScope) MayAdvanceToClosing() bool {
	return s.Has(TokenAdvanceToClosing)
}

// MayIssueAttestation lists the attestation types the scope may issue, in
// grant order. Tokens naming unknown attestation types are ignored.
func (s AuthorityScope) MayIssueAttestation() []AttestationType {
	return s.attestationTokens(issueTokenPrefix)
}

// MayWithdrawAttestation lists the attestation types the scope may withdraw,
// in grant order.
func (s AuthorityScope) MayWithdrawAttestation() []AttestationType {
	return s.attestationTokens(withdrawTokenPrefix)
}

func (s AuthorityScope) attestationTokens(prefix string) []AttestationType {
	var types []AttestationType
	for _, t := range s.Tokens {
		name, ok := strings.CutPrefix(t, prefix)
		if !ok {
			continue
		}
		at := AttestationType(name)
		if at.Valid() {
			types = append(types, at)
		}
	}
	return types
}

// ActiveAt reports whether now falls inside [ValidFrom, ValidUntil). Absent
// bounds are open: no ValidUntil means the grant never expires on its own.
func (s AuthorityScope) ActiveAt(now time.Time) bool {
	if s.ValidFrom != nil && now.Before(*s.ValidFrom) {
		return false
	}
	if s.ValidUntil != nil && !now.Before(*s.ValidUntil) {
		return false
	}
	return true
}
