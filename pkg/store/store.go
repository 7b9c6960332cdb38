// Package store provides read adapters over the external event log and
// attestation store, plus an explicitly non-authoritative readiness hint
// cache. The spine never treats anything here as truth except the raw event
// and attestation rows; all derived state is recomputed on read.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/deedgrid/spine/pkg/contracts"
)

// EventStore reads and appends immutable events for one entity. Events returns
// them ordered by occurred_at ascending; the log itself is owned externally
// and rows are never mutated or deleted.
type EventStore interface {
	Events(ctx context.Context, entityType, entityID string) ([]contracts.Event, error)
	Append(ctx context.Context, e contracts.Event) error
}

// AttestationStore persists verified attestations and serves the current set
// for an entity: the latest attestation of each type within the trailing
// currency window. Superseded attestations stay on disk.
type AttestationStore interface {
	Current(ctx context.Context, entityFingerprint string, now time.Time) ([]contracts.Attestation, error)
	Put(ctx context.Context, att contracts.Attestation) error
}

// latestPerType reduces a window of attestations to the current one per type,
// ordered deterministically by type name.
func latestPerType(atts []contracts.Attestation, now time.Time) []contracts.Attestation {
	current := map[contracts.AttestationType]contracts.Attestation{}
	for _, a := range atts {
		if !a.Current(now) || a.IssuedAt.After(now) {
			continue
		}
		if existing, ok := current[a.Type]; !ok || a.IssuedAt.After(existing.IssuedAt) {
			current[a.Type] = a
		}
	}
	out := make([]contracts.Attestation, 0, len(current))
	for _, a := range current {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
