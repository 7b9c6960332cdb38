package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deedgrid/spine/pkg/contracts"
	"github.com/deedgrid/spine/pkg/store"
)

func TestPostgresEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{
		"entity_type", "entity_id", "event_type", "payload", "occurred_at", "actor_id",
	}).
		AddRow("transaction", "txn-1", "AuthorityGranted",
			[]byte(`{"actor_id":"agent-1","scope":["advance_to_closing"]}`), now, "ops-1").
		AddRow("transaction", "txn-1", "ContingencyCreated", nil, now.Add(time.Hour), nil)

	mock.ExpectQuery("SELECT entity_type, entity_id, event_type, payload, occurred_at, actor_id").
		WithArgs("transaction", "txn-1").
		WillReturnRows(rows)

	s := store.NewPostgresStore(db)
	events, err := s.Events(context.Background(), "transaction", "txn-1")
	require.NoError(t, err)
	require.Len(t, events, 2)

	payload, ok := events[0].DecodeAuthorityGranted()
	require.True(t, ok)
	assert.Equal(t, "agent-1", payload.ActorID)
	assert.Equal(t, "", events[1].ActorID)
	assert.Nil(t, events[1].Payload)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("INSERT INTO events").
		WithArgs("transaction", "txn-1", "TransactionStateAdvanced",
			[]byte(`{"to_state":"closing"}`), now.UTC(), "agent-1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	s := store.NewPostgresStore(db)
	err = s.Append(context.Background(), contracts.Event{
		EntityType: contracts.EntityTransaction,
		EntityID:   "txn-1",
		EventType:  contracts.EventTransactionStateAdvanced,
		Payload:    map[string]any{"to_state": "closing"},
		OccurredAt: now,
		ActorID:    "agent-1",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCurrentFiltersAndReduces(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{
		"attestation_id", "issuing_node_id", "attestation_type", "entity_fingerprint",
		"payload", "document_hashes", "issued_at", "signature",
	}).
		AddRow("att-old", "lender-1", "LoanClearedToClose", "fp-1",
			[]byte(`{}`), nil, now.Add(-48*time.Hour), "sig-a").
		AddRow("att-new", "lender-1", "LoanClearedToClose", "fp-1",
			[]byte(`{"conditional":true}`), nil, now.Add(-time.Hour), "sig-b")

	mock.ExpectQuery("SELECT attestation_id, issuing_node_id, attestation_type, entity_fingerprint").
		WithArgs("fp-1", now.Add(-contracts.CurrencyWindow).UTC()).
		WillReturnRows(rows)

	s := store.NewPostgresStore(db)
	current, err := s.Current(context.Background(), "fp-1", now)
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, "att-new", current[0].AttestationID)
	assert.True(t, current[0].Payload.IsConditional())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPut(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("INSERT INTO attestations").
		WithArgs("att-1", "title-1", "TitleClearToClose", "fp-1",
			[]byte(`{}`), []byte(`["aa11"]`), now.UTC(), "sig").
		WillReturnResult(sqlmock.NewResult(1, 1))

	s := store.NewPostgresStore(db)
	err = s.Put(context.Background(), contracts.Attestation{
		AttestationID:     "att-1",
		IssuingNodeID:     "title-1",
		Type:              contracts.AttestationTitleClearToClose,
		EntityFingerprint: "fp-1",
		DocumentHashes:    []string{"aa11"},
		IssuedAt:          now,
		Signature:         "sig",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
