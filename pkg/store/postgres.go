package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/deedgrid/spine/pkg/contracts"

	_ "github.com/lib/pq"
)

// PostgresStore serves event and attestation reads from Postgres, the shared
// deployment mode. Schema management is external (migrations run at deploy
// time), matching the contract that the event log is owned outside the spine.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an opened Postgres database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Events returns the entity's events ordered by occurred_at ascending.
func (s *PostgresStore) Events(ctx context.Context, entityType, entityID string) ([]contracts.Event, error) {
	query := `
		SELECT entity_type, entity_id, event_type, payload, occurred_at, actor_id
		FROM events
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY occurred_at ASC`
	rows, err := s.db.QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []contracts.Event
	for rows.Next() {
		var (
			e           contracts.Event
			payloadJSON []byte
			actorID     sql.NullString
		)
		if err := rows.Scan(&e.EntityType, &e.EntityID, &e.EventType, &payloadJSON, &e.OccurredAt, &actorID); err != nil {
			return nil, err
		}
		e.ActorID = actorID.String
		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &e.Payload); err != nil {
				return nil, fmt.Errorf("corrupt event payload for %s/%s: %w", entityType, entityID, err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Append inserts an immutable event row.
func (s *PostgresStore) Append(ctx context.Context, e contracts.Event) error {
	payloadJSON, _ := json.Marshal(e.Payload)
	query := `INSERT INTO events (entity_type, entity_id, event_type, payload, occurred_at, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, query,
		e.EntityType, e.EntityID, string(e.EventType), payloadJSON, e.OccurredAt.UTC(), e.ActorID)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Current returns the latest attestation per type inside the currency window.
func (s *PostgresStore) Current(ctx context.Context, fingerprint string, now time.Time) ([]contracts.Attestation, error) {
	query := `
		SELECT attestation_id, issuing_node_id, attestation_type, entity_fingerprint,
		       payload, document_hashes, issued_at, signature
		FROM attestations
		WHERE entity_fingerprint = $1 AND issued_at >= $2
		ORDER BY issued_at ASC`
	rows, err := s.db.QueryContext(ctx, query, fingerprint, now.Add(-contracts.CurrencyWindow).UTC())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var atts []contracts.Attestation
	for rows.Next() {
		var (
			a           contracts.Attestation
			attType     string
			payloadJSON []byte
			hashesJSON  []byte
		)
		if err := rows.Scan(&a.AttestationID, &a.IssuingNodeID, &attType, &a.EntityFingerprint,
			&payloadJSON, &hashesJSON, &a.IssuedAt, &a.Signature); err != nil {
			return nil, err
		}
		a.Type = contracts.AttestationType(attType)
		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &a.Payload); err != nil {
				return nil, fmt.Errorf("corrupt attestation payload %s: %w", a.AttestationID, err)
			}
		}
		if len(hashesJSON) > 0 {
			if err := json.Unmarshal(hashesJSON, &a.DocumentHashes); err != nil {
				return nil, fmt.Errorf("corrupt document hashes %s: %w", a.AttestationID, err)
			}
		}
		atts = append(atts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return latestPerType(atts, now), nil
}

// Put inserts a verified attestation, idempotent on attestation id.
func (s *PostgresStore) Put(ctx context.Context, att contracts.Attestation) error {
	payloadJSON, _ := json.Marshal(att.Payload)
	hashesJSON, _ := json.Marshal(att.DocumentHashes)
	query := `INSERT INTO attestations (
		attestation_id, issuing_node_id, attestation_type, entity_fingerprint,
		payload, document_hashes, issued_at, signature
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (attestation_id) DO NOTHING`
	_, err := s.db.ExecContext(ctx, query,
		att.AttestationID, att.IssuingNodeID, string(att.Type), att.EntityFingerprint,
		payloadJSON, hashesJSON, att.IssuedAt.UTC(), att.Signature)
	if err != nil {
		return fmt.Errorf("failed to insert attestation: %w", err)
	}
	return nil
}
