package federation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/deedgrid/spine/pkg/contracts"
)

// ErrThrottled is returned when a node exceeds its intake rate.
var ErrThrottled = errors.New("federation: node intake rate exceeded")

// Sink receives verified attestations for persistence.
type Sink interface {
	Put(ctx context.Context, att contracts.Attestation) error
}

// Intake runs the full trust-boundary pipeline for one submitted fact:
// per-node rate limit, signature verification, payload schema validation,
// conversion, persistence, interpretation. Rejections are logged and dropped,
// never retried; a forged or malformed fact is not a transient failure.
type Intake struct {
	verifier *Verifier
	registry *Registry
	sink     Sink
	logger   *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewIntake creates an intake with the given per-node rate limit.
func NewIntake(registry *Registry, sink Sink, logger *slog.Logger, perNode rate.Limit, burst int) *Intake {
	if logger == nil {
		logger = slog.Default()
	}
	return &Intake{
		verifier: NewVerifier(registry),
		registry: registry,
		sink:     sink,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
		rate:     perNode,
		burst:    burst,
	}
}

func (i *Intake) limiter(nodeID string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()
	l, ok := i.limiters[nodeID]
	if !ok {
		l = rate.NewLimiter(i.rate, i.burst)
		i.limiters[nodeID] = l
	}
	return l
}

// Submit processes a detached-signature fact. On success the attestation has
// been persisted and the interpretation tells the caller what the fact means;
// proposals inside it still require Guard validation before acting.
func (i *Intake) Submit(ctx context.Context, fact Fact) (Interpretation, error) {
	if !i.limiter(fact.NodeID).Allow() {
		return Interpretation{}, fmt.Errorf("%w: %s", ErrThrottled, fact.NodeID)
	}

	node, err := i.verifier.Verify(fact)
	if err != nil {
		i.logger.Warn("fact rejected at trust boundary",
			"fact_id", fact.FactID, "node_id", fact.NodeID, "err", err)
		return Interpretation{}, err
	}
	if err := ValidatePayload(fact.Payload); err != nil {
		i.logger.Warn("fact payload rejected",
			"fact_id", fact.FactID, "node_id", fact.NodeID, "err", err)
		return Interpretation{}, err
	}
	if !fact.Type.Valid() {
		err := fmt.Errorf("federation: unknown attestation type %q", fact.Type)
		i.logger.Warn("fact type rejected", "fact_id", fact.FactID, "err", err)
		return Interpretation{}, err
	}

	att, err := fact.Attestation()
	if err != nil {
		return Interpretation{}, err
	}
	if err := i.sink.Put(ctx, att); err != nil {
		return Interpretation{}, fmt.Errorf("federation: persist attestation %s: %w", att.AttestationID, err)
	}

	i.logger.Info("fact accepted",
		"fact_id", fact.FactID, "node_id", node.ID, "type", fact.Type)
	return Interpret(fact, node), nil
}

// SubmitJWS processes a compact JWS token from a lender or insurance node.
func (i *Intake) SubmitJWS(ctx context.Context, token string) (Interpretation, error) {
	fact, node, err := ParseFactJWS(token, i.registry)
	if err != nil {
		i.logger.Warn("JWS fact rejected at trust boundary", "err", err)
		return Interpretation{}, err
	}
	if !i.limiter(node.ID).Allow() {
		return Interpretation{}, fmt.Errorf("%w: %s", ErrThrottled, node.ID)
	}
	if err := ValidatePayload(fact.Payload); err != nil {
		i.logger.Warn("JWS fact payload rejected", "fact_id", fact.FactID, "err", err)
		return Interpretation{}, err
	}
	if !fact.Type.Valid() {
		err := fmt.Errorf("federation: unknown attestation type in JWS fact %s", fact.FactID)
		i.logger.Warn("JWS fact type rejected", "err", err)
		return Interpretation{}, err
	}

	att, err := fact.Attestation()
	if err != nil {
		return Interpretation{}, err
	}
	if err := i.sink.Put(ctx, att); err != nil {
		return Interpretation{}, fmt.Errorf("federation: persist attestation %s: %w", att.AttestationID, err)
	}

	i.logger.Info("JWS fact accepted", "fact_id", fact.FactID, "node_id", node.ID, "type", fact.Type)
	return Interpret(fact, node), nil
}
