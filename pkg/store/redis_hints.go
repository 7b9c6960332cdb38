package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deedgrid/spine/pkg/contracts"
)

// ReadinessHintStore caches the last computed readiness result per
// transaction for cheap UI rendering. The cache is a denormalized hint and
// never authoritative: the Guard recomputes readiness from the event log and
// attestation store on every write, so a stale or missing hint can only make
// the UI slower, never wrong.
type ReadinessHintStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewReadinessHintStore creates a hint store with the given entry TTL.
func NewReadinessHintStore(rdb *redis.Client, ttl time.Duration) *ReadinessHintStore {
	return &ReadinessHintStore{rdb: rdb, ttl: ttl}
}

func hintKey(transactionID string) string {
	return "spine:readiness:" + transactionID
}

// Put stores the latest readiness result for a transaction.
func (s *ReadinessHintStore) Put(ctx context.Context, transactionID string, r contracts.ReadinessResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode readiness hint: %w", err)
	}
	if err := s.rdb.Set(ctx, hintKey(transactionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store readiness hint for %s: %w", transactionID, err)
	}
	return nil
}

// Get returns the cached readiness result, or nil when no hint exists.
func (s *ReadinessHintStore) Get(ctx context.Context, transactionID string) (*contracts.ReadinessResult, error) {
	data, err := s.rdb.Get(ctx, hintKey(transactionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load readiness hint for %s: %w", transactionID, err)
	}
	var r contracts.ReadinessResult
	if err := json.Unmarshal(data, &r); err != nil {
		// A corrupt hint is indistinguishable from no hint.
		return nil, nil
	}
	return &r, nil
}

// Invalidate drops the hint after a write passes the Guard.
func (s *ReadinessHintStore) Invalidate(ctx context.Context, transactionID string) error {
	return s.rdb.Del(ctx, hintKey(transactionID)).Err()
}
