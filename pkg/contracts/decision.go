package contracts

import "time"

// Role is the participant role derived from an authority scope. Role is never
// inferred from user-supplied metadata; derivation fails closed to RoleNone.
type Role string

const (
	RoleNone      Role = ""
	RoleAgent     Role = "agent"
	RoleLender    Role = "lender"
	RoleTitle     Role = "title"
	RoleInsurance Role = "insurance"
)

// BlockingKind enumerates the narrow set of event/attestation types that, once
// present, override every other readiness signal. The declaration order below
// is the fixed priority order used when several blockers co-occur.
type BlockingKind string

const (
	BlockFinancingWithdrawn  BlockingKind = "FinancingWithdrawn"
	BlockTitleDefectDetected BlockingKind = "TitleDefectDetected"
	BlockCoverageWithdrawn   BlockingKind = "CoverageWithdrawn"
	BlockAuthorityRevoked    BlockingKind = "AuthorityRevoked"
	BlockContingencyFailed   BlockingKind = "ContingencyFailed"
)

// BlockingKinds lists all blocking kinds in priority order.
var BlockingKinds = []BlockingKind{
	BlockFinancingWithdrawn,
	BlockTitleDefectDetected,
	BlockCoverageWithdrawn,
	BlockAuthorityRevoked,
	BlockContingencyFailed,
}

// Reason returns the human-readable reason for the blocker.
func (k BlockingKind) Reason() string {
	switch k {
	case BlockFinancingWithdrawn:
		return "Financing has been withdrawn by the lender"
	case BlockTitleDefectDetected:
		return "A title defect has been detected"
	case BlockCoverageWithdrawn:
		return "Insurance coverage has been withdrawn"
	case BlockAuthorityRevoked:
		return "Acting authority has been revoked"
	case BlockContingencyFailed:
		return "A contingency has failed"
	default:
		return "Transaction is blocked"
	}
}

// ReadinessState is the derived meta-state describing whether a transaction
// may legally proceed to closing.
type ReadinessState string

const (
	ReadinessBlocked            ReadinessState = "blocked"
	ReadinessNotReady           ReadinessState = "not_ready"
	ReadinessExpired            ReadinessState = "expired"
	ReadinessConditionallyReady ReadinessState = "conditionally_ready"
	ReadinessReady              ReadinessState = "ready"
)

// ReadinessResult is the outcome of the closing-readiness state machine.
// ReadyToClose is exactly State == ReadinessReady and never true otherwise.
type ReadinessResult struct {
	State        ReadinessState    `json:"state"`
	ReadyToClose bool              `json:"ready_to_close"`
	Reasons      []string          `json:"reasons,omitempty"`
	Warnings     []string          `json:"warnings,omitempty"`
	ExpiringSoon []AttestationType `json:"expiring_soon,omitempty"`
}

// DecisionContext is the immutable snapshot from which exactly one command is
// resolved. It is either fully valid or replaced wholesale by a blocked
// fallback; it is never partially constructed.
type DecisionContext struct {
	ActorID                 string           `json:"actor_id"`
	TransactionID           string           `json:"transaction_id"`
	Role                    Role             `json:"role"`
	TransactionState        TransactionState `json:"transaction_state"`
	Readiness               ReadinessResult  `json:"readiness"`
	Authority               AuthorityScope   `json:"authority"`
	UnresolvedContingencies bool             `json:"unresolved_contingencies"`
	BlockingReason          string           `json:"blocking_reason,omitempty"`
	BuiltAt                 time.Time        `json:"built_at"`
}

// Blocked reports whether the context resolves under the blocked regime.
func (c DecisionContext) Blocked() bool {
	return c.Readiness.State == ReadinessBlocked
}

// CommandType tags a member of the closed command set. Adding a capability
// means extending this union, never bypassing it.
type CommandType string

const (
	CommandNone                CommandType = "none"
	CommandAdvanceToClosing    CommandType = "advance_to_closing"
	CommandIssueAttestation    CommandType = "issue_attestation"
	CommandWithdrawAttestation CommandType = "withdraw_attestation"
)

// CommandResolution is the single legal command for an actor at a moment, or
// the proof that none exists. AttestationType is set only for the issue and
// withdraw variants; Reason only for none.
type CommandResolution struct {
	Type            CommandType     `json:"type"`
	AttestationType AttestationType `json:"attestation_type,omitempty"`
	Reason          string          `json:"reason,omitempty"`
}

// NoCommand builds the none variant with the given reason.
func NoCommand(reason string) CommandResolution {
	return CommandResolution{Type: CommandNone, Reason: reason}
}

// Matches reports whether a declared intent matches the resolved command.
// For attestation commands the attestation type must match as well.
func (r CommandResolution) Matches(t CommandType, at AttestationType) bool {
	if r.Type != t {
		return false
	}
	if t == CommandIssueAttestation || t == CommandWithdrawAttestation {
		return r.AttestationType == at
	}
	return true
}
