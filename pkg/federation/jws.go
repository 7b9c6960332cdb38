package federation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// FactClaims is the JWS claim shape lender and insurance partner nodes may use
// to deliver facts as compact tokens instead of detached-signature records.
// The issuer claim names the node; the whole token is covered by the node's
// signature. Title nodes cannot use this path: their signatures must cover
// referenced document hashes as one unit, which the detached Fact form
// enforces.
type FactClaims struct {
	jwt.RegisteredClaims
	FactID            string         `json:"fact_id"`
	AttestationType   string         `json:"attestation_type"`
	AggregateID       string         `json:"aggregate_id"`
	EntityFingerprint string         `json:"entity_fingerprint"`
	Payload           map[string]any `json:"payload"`
}

// jwsMethods is the closed set of accepted signing algorithms. "none" and HMAC
// are never acceptable for federated facts.
var jwsMethods = []string{"EdDSA", "RS256", "ES256"}

// ParseFactJWS verifies a compact JWS token against the issuing node's
// registered key and returns the equivalent Fact plus the node. The returned
// fact carries the token itself as its signature; it does not need a second
// Verify pass.
func ParseFactJWS(token string, registry *Registry) (Fact, Node, error) {
	var issuerNode Node
	claims := &FactClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		issuer, err := t.Claims.GetIssuer()
		if err != nil || issuer == "" {
			return nil, fmt.Errorf("%w: token has no issuer", ErrUntrustedNode)
		}
		node, ok := registry.Node(issuer)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUntrustedNode, issuer)
		}
		if node.Kind == NodeTitle {
			return nil, fmt.Errorf("%w: title facts must use detached signatures", ErrInvalidSignature)
		}
		issuerNode = node
		return node.ParseKey()
	}, jwt.WithValidMethods(jwsMethods))
	if err != nil {
		return Fact{}, Node{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !parsed.Valid {
		return Fact{}, Node{}, ErrInvalidSignature
	}

	payload, err := json.Marshal(claims.Payload)
	if err != nil {
		return Fact{}, Node{}, fmt.Errorf("federation: re-encode JWS payload: %w", err)
	}
	issuedAt := time.Now().UTC()
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	return Fact{
		FactID:            claims.FactID,
		NodeID:            issuerNode.ID,
		Type:              contractsType(claims.AttestationType),
		AggregateID:       claims.AggregateID,
		EntityFingerprint: claims.EntityFingerprint,
		Payload:           payload,
		IssuedAt:          issuedAt,
		Signature:         token,
	}, issuerNode, nil
}
