package decision

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deedgrid/spine/pkg/canonicalize"
)

// AuditEntry is a tamper-evident record of one guard verdict. PreviousHash
// links each entry to the one before it, so rewriting history invalidates
// every later hash.
type AuditEntry struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	ActorID       string    `json:"actor_id"`
	TransactionID string    `json:"transaction_id"`
	Action        string    `json:"action"`
	Details       string    `json:"details,omitempty"`
	PreviousHash  string    `json:"previous_hash"`
	Hash          string    `json:"hash"`
}

// AuditLog manages the hash-chained sequence of guard verdicts.
type AuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
	clock   Clock
}

// NewAuditLog creates an empty audit log. If clock is nil a wall clock is
// used.
func NewAuditLog(clock Clock) *AuditLog {
	if clock == nil {
		clock = wallClock{}
	}
	return &AuditLog{clock: clock}
}

// Append records a verdict, linking it to the previous entry.
func (l *AuditLog) Append(actorID, transactionID, action, details string) (AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	previous := ""
	if n := len(l.entries); n > 0 {
		previous = l.entries[n-1].Hash
	}
	entry := AuditEntry{
		ID:            uuid.NewString(),
		Timestamp:     l.clock.Now().UTC(),
		ActorID:       actorID,
		TransactionID: transactionID,
		Action:        action,
		Details:       details,
		PreviousHash:  previous,
	}
	hash, err := entryHash(entry)
	if err != nil {
		return AuditEntry{}, fmt.Errorf("audit: hash entry: %w", err)
	}
	entry.Hash = hash
	l.entries = append(l.entries, entry)
	return entry, nil
}

// Entries returns a copy of the log.
func (l *AuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Verify walks the chain and reports the first break, if any.
func (l *AuditLog) Verify() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	previous := ""
	for i, entry := range l.entries {
		if entry.PreviousHash != previous {
			return fmt.Errorf("audit: entry %d has broken chain link", i)
		}
		withoutHash := entry
		withoutHash.Hash = ""
		expected, err := entryHash(withoutHash)
		if err != nil {
			return err
		}
		if entry.Hash != expected {
			return fmt.Errorf("audit: entry %d hash mismatch", i)
		}
		previous = entry.Hash
	}
	return nil
}

func entryHash(entry AuditEntry) (string, error) {
	entry.Hash = ""
	b, err := canonicalize.JCS(entry)
	if err != nil {
		return "", err
	}
	return canonicalize.HashBytes(b), nil
}
