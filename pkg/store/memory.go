package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/deedgrid/spine/pkg/contracts"
)

// MemoryEventStore is the reference in-memory event store, used by tests and
// by the builder's fail-closed fallbacks.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events map[string][]contracts.Event
}

// NewMemoryEventStore creates an empty in-memory event store.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{events: make(map[string][]contracts.Event)}
}

func entityKey(entityType, entityID string) string {
	return entityType + "/" + entityID
}

// Events returns the entity's events ordered by occurred_at ascending.
func (s *MemoryEventStore) Events(ctx context.Context, entityType, entityID string) ([]contracts.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.events[entityKey(entityType, entityID)]
	out := make([]contracts.Event, len(stored))
	copy(out, stored)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}

// Append adds an event. Events are immutable once appended.
func (s *MemoryEventStore) Append(ctx context.Context, e contracts.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entityKey(e.EntityType, e.EntityID)
	s.events[key] = append(s.events[key], e)
	return nil
}

// MemoryAttestationStore is the reference in-memory attestation store.
type MemoryAttestationStore struct {
	mu   sync.RWMutex
	atts map[string][]contracts.Attestation
}

// NewMemoryAttestationStore creates an empty in-memory attestation store.
func NewMemoryAttestationStore() *MemoryAttestationStore {
	return &MemoryAttestationStore{atts: make(map[string][]contracts.Attestation)}
}

// Current returns the latest attestation per type inside the currency window.
func (s *MemoryAttestationStore) Current(ctx context.Context, fingerprint string, now time.Time) ([]contracts.Attestation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latestPerType(s.atts[fingerprint], now), nil
}

// Put stores a verified attestation. Older attestations of the same type are
// superseded by currency, not removed.
func (s *MemoryAttestationStore) Put(ctx context.Context, att contracts.Attestation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.atts[att.EntityFingerprint] = append(s.atts[att.EntityFingerprint], att)
	return nil
}
