package contracts

// EntityTransaction is the entity type under which transaction events are
// recorded in the external event log.
const EntityTransaction = "transaction"

// TransactionState is the lifecycle state of a transaction, derived purely by
// folding TransactionStateAdvanced events over the legal-transition table.
type TransactionState string

const (
	StateInitiated     TransactionState = "initiated"
	StateQualified     TransactionState = "qualified"
	StateOfferIssued   TransactionState = "offer_issued"
	StateUnderContract TransactionState = "under_contract"
	StateClosing       TransactionState = "closing"
	StateCompleted     TransactionState = "completed"
	StateFailed        TransactionState = "failed"
)

// Valid reports whether s is a member of the closed state set.
func (s TransactionState) Valid() bool {
	switch s {
	case StateInitiated, StateQualified, StateOfferIssued, StateUnderContract,
		StateClosing, StateCompleted, StateFailed:
		return true
	}
	return false
}

// Terminal reports whether the state admits no further transitions.
func (s TransactionState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}
