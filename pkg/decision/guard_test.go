package decision_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deedgrid/spine/pkg/contracts"
	"github.com/deedgrid/spine/pkg/decision"
)

func newGuard(f fixture) (*decision.Guard, *decision.AuditLog) {
	audit := decision.NewAuditLog(fixedClock{now})
	return decision.NewGuard(f.builder(), audit), audit
}

func TestGuardAllowsResolvedCommand(t *testing.T) {
	f := newFixture(t)
	guard, audit := newGuard(f)

	dc, resolved, err := guard.Command(context.Background(), "agent-1", "txn-1", contracts.CommandAdvanceToClosing)
	require.NoError(t, err)
	assert.Equal(t, contracts.CommandAdvanceToClosing, resolved.Type)
	assert.Equal(t, contracts.RoleAgent, dc.Role)

	entries := audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "GUARD_ALLOW", entries[0].Action)
	assert.NoError(t, audit.Verify())
}

func TestGuardDeniesMismatchedIntent(t *testing.T) {
	f := newFixture(t)
	guard, audit := newGuard(f)

	// The agent's resolved command is advance, not issue.
	_, _, err := guard.AttestationIssuance(context.Background(), "agent-1", "txn-1", contracts.AttestationLoanClearedToClose)
	require.Error(t, err)

	var violation *decision.ViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "agent-1", violation.ActorID)
	assert.Equal(t, contracts.CommandIssueAttestation, violation.Declared.Type)
	assert.Equal(t, contracts.CommandAdvanceToClosing, violation.Resolved.Type)

	entries := audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "GUARD_DENY", entries[0].Action)
	assert.NoError(t, audit.Verify())
}

func TestGuardClosesTimeOfCheckWindow(t *testing.T) {
	f := newFixture(t)
	guard, _ := newGuard(f)

	// The UI resolved advance_to_closing a moment ago.
	earlier := f.builder().CommandResolution(context.Background(), "agent-1", "txn-1")
	require.Equal(t, contracts.CommandAdvanceToClosing, earlier.Type)

	// Authority is revoked between resolution and execution.
	f.appendEvent(t, contracts.Event{
		EventType:  contracts.EventAuthorityRevoked,
		Payload:    map[string]any{"actor_id": "agent-1"},
		OccurredAt: now.Add(-time.Minute),
	})

	// The guard rebuilds from the current log and rejects the stale intent.
	_, _, err := guard.Command(context.Background(), "agent-1", "txn-1", contracts.CommandAdvanceToClosing)
	var violation *decision.ViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, contracts.CommandNone, violation.Resolved.Type)
}

func TestGuardVerifiesAttestationType(t *testing.T) {
	f := newFixture(t)
	// Replace the agent fixture actor with a lender.
	f.appendEvent(t, contracts.Event{
		EventType: contracts.EventAuthorityGranted,
		Payload: map[string]any{
			"actor_id": "lender-1",
			"scope":    []string{contracts.IssueToken(contracts.AttestationLoanClearedToClose)},
		},
		OccurredAt: now.Add(-time.Hour),
	})
	guard, _ := newGuard(f)

	_, resolved, err := guard.AttestationIssuance(context.Background(), "lender-1", "txn-1", contracts.AttestationLoanClearedToClose)
	require.NoError(t, err)
	assert.Equal(t, contracts.AttestationLoanClearedToClose, resolved.AttestationType)

	// Same command type, wrong attestation type: denied.
	_, _, err = guard.AttestationIssuance(context.Background(), "lender-1", "txn-1", contracts.AttestationBinderIssued)
	var violation *decision.ViolationError
	require.True(t, errors.As(err, &violation))
}

func TestGuardWorksWithoutAuditLog(t *testing.T) {
	f := newFixture(t)
	guard := decision.NewGuard(f.builder(), nil)

	_, _, err := guard.Command(context.Background(), "agent-1", "txn-1", contracts.CommandAdvanceToClosing)
	assert.NoError(t, err)
}

func TestViolationErrorMessage(t *testing.T) {
	violation := &decision.ViolationError{
		ActorID:       "agent-1",
		TransactionID: "txn-1",
		Declared:      contracts.CommandResolution{Type: contracts.CommandAdvanceToClosing},
		Resolved:      contracts.CommandResolution{Type: contracts.CommandNone, Reason: "Transaction is blocked"},
	}
	msg := violation.Error()
	assert.Contains(t, msg, "agent-1")
	assert.Contains(t, msg, "advance_to_closing")
	assert.Contains(t, msg, "Transaction is blocked")
}
