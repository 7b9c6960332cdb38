package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/deedgrid/spine/pkg/contracts"

	_ "modernc.org/sqlite"
)

// SQLiteStore serves both event and attestation reads from a single SQLite
// database, the lite deployment mode.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an opened SQLite database and ensures the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS events (
		entity_type TEXT NOT NULL,
		entity_id   TEXT NOT NULL,
		event_type  TEXT NOT NULL,
		payload     JSON,
		occurred_at TEXT NOT NULL,
		actor_id    TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_events_entity ON events (entity_type, entity_id, occurred_at);
	CREATE TABLE IF NOT EXISTS attestations (
		attestation_id     TEXT PRIMARY KEY,
		issuing_node_id    TEXT NOT NULL,
		attestation_type   TEXT NOT NULL,
		entity_fingerprint TEXT NOT NULL,
		payload            JSON,
		document_hashes    JSON,
		issued_at          TEXT NOT NULL,
		signature          TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_attestations_entity ON attestations (entity_fingerprint, issued_at);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Events returns the entity's events ordered by occurred_at ascending.
func (s *SQLiteStore) Events(ctx context.Context, entityType, entityID string) ([]contracts.Event, error) {
	query := `
		SELECT entity_type, entity_id, event_type, payload, occurred_at, actor_id
		FROM events
		WHERE entity_type = ? AND entity_id = ?
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
			payloadJSON sql.NullString
			occurredAt  string
		)
		if err := rows.Scan(&e.EntityType, &e.EntityID, &e.EventType, &payloadJSON, &occurredAt, &e.ActorID); err != nil {
			return nil, err
		}
		e.OccurredAt = parseTime(occurredAt)
		if payloadJSON.Valid && payloadJSON.String != "" {
			if err := json.Unmarshal([]byte(payloadJSON.String), &e.Payload); err != nil {
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
func (s *SQLiteStore) Append(ctx context.Context, e contracts.Event) error {
	payloadJSON, _ := json.Marshal(e.Payload)
	query := `INSERT INTO events (entity_type, entity_id, event_type, payload, occurred_at, actor_id)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		e.EntityType, e.EntityID, string(e.EventType), string(payloadJSON),
		e.OccurredAt.UTC().Format(time.RFC3339Nano), e.ActorID)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Current returns the latest attestation per type inside the currency window.
func (s *SQLiteStore) Current(ctx context.Context, fingerprint string, now time.Time) ([]contracts.Attestation, error) {
	query := `
		SELECT attestation_id, issuing_node_id, attestation_type, entity_fingerprint,
		       payload, document_hashes, issued_at, signature
		FROM attestations
		WHERE entity_fingerprint = ? AND issued_at >= ?
		ORDER BY issued_at ASC`
	cutoff := now.Add(-contracts.CurrencyWindow).UTC().Format(time.RFC3339Nano)
	rows, err := s.db.QueryContext(ctx, query, fingerprint, cutoff)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var atts []contracts.Attestation
	for rows.Next() {
		a, err := scanAttestation(rows)
		if err != nil {
			return nil, err
		}
		atts = append(atts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return latestPerType(atts, now), nil
}

// Put inserts a verified attestation. Re-submission of the same attestation id
// is idempotent.
func (s *SQLiteStore) Put(ctx context.Context, att contracts.Attestation) error {
	payloadJSON, _ := json.Marshal(att.Payload)
	hashesJSON, _ := json.Marshal(att.DocumentHashes)
	query := `INSERT INTO attestations (
		attestation_id, issuing_node_id, attestation_type, entity_fingerprint,
		payload, document_hashes, issued_at, signature
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (attestation_id) DO NOTHING`
	_, err := s.db.ExecContext(ctx, query,
		att.AttestationID, att.IssuingNodeID, string(att.Type), att.EntityFingerprint,
		string(payloadJSON), string(hashesJSON),
		att.IssuedAt.UTC().Format(time.RFC3339Nano), att.Signature)
	if err != nil {
		return fmt.Errorf("failed to insert attestation: %w", err)
	}
	return nil
}

func scanAttestation(rows *sql.Rows) (contracts.Attestation, error) {
	var (
		a           contracts.Attestation
		attType     string
		payloadJSON sql.NullString
		hashesJSON  sql.NullString
		issuedAt    string
	)
	if err := rows.Scan(&a.AttestationID, &a.IssuingNodeID, &attType, &a.EntityFingerprint,
		&payloadJSON, &hashesJSON, &issuedAt, &a.Signature); err != nil {
		return contracts.Attestation{}, err
	}
	a.Type = contracts.AttestationType(attType)
	a.IssuedAt = parseTime(issuedAt)
	if payloadJSON.Valid && payloadJSON.String != "" {
		if err := json.Unmarshal([]byte(payloadJSON.String), &a.Payload); err != nil {
			return contracts.Attestation{}, fmt.Errorf("corrupt attestation payload %s: %w", a.AttestationID, err)
		}
	}
	if hashesJSON.Valid && hashesJSON.String != "" && hashesJSON.String != "null" {
		if err := json.Unmarshal([]byte(hashesJSON.String), &a.DocumentHashes); err != nil {
			return contracts.Attestation{}, fmt.Errorf("corrupt document hashes %s: %w", a.AttestationID, err)
		}
	}
	return a, nil
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}
