package federation

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/deedgrid/spine/pkg/canonicalize"
	"github.com/deedgrid/spine/pkg/contracts"
)

// ErrUntrustedNode is returned when the issuing node is unknown or disabled.
var ErrUntrustedNode = errors.New("federation: issuing node is not trusted")

// ErrInvalidSignature is returned when a fact's signature is missing,
// malformed, or fails verification. There is no partial trust: any of these
// causes unconditional rejection.
var ErrInvalidSignature = errors.New("federation: signature verification failed")

// Fact is an externally submitted, not-yet-trusted assertion. It only becomes
// a contracts.Attestation after Verify succeeds.
type Fact struct {
	FactID            string                    `json:"fact_id"`
	NodeID            string                    `json:"issuing_node_id"`
	Type              contracts.AttestationType `json:"attestation_type"`
	AggregateID       string                    `json:"aggregate_id"`
	EntityFingerprint string                    `json:"entity_fingerprint"`
	Payload           json.RawMessage           `json:"payload"`
	DocumentHashes    []string                  `json:"document_hashes,omitempty"`
	IssuedAt          time.Time                 `json:"issued_at"`
	Signature         string                    `json:"signature"`
}

// SigningBytes returns the canonical bytes the node's signature must cover.
// Title-originated facts sign the aggregate id, the full payload, and all
// referenced document hashes as one unit; lender and insurance facts sign the
// payload alone.
func SigningBytes(fact Fact, kind NodeKind) ([]byte, error) {
	if len(fact.Payload) == 0 {
		return nil, fmt.Errorf("federation: fact %s has no payload", fact.FactID)
	}
	var payload any
	if err := json.Unmarshal(fact.Payload, &payload); err != nil {
		return nil, fmt.Errorf("federation: fact %s payload is not valid JSON: %w", fact.FactID, err)
	}
	if kind == NodeTitle {
		hashes := fact.DocumentHashes
		if hashes == nil {
			hashes = []string{}
		}
		return canonicalize.JCS(map[string]any{
			"aggregate_id":    fact.AggregateID,
			"payload":         payload,
			"document_hashes": hashes,
		})
	}
	return canonicalize.JCS(payload)
}

// Verifier checks fact signatures against the trust registry.
type Verifier struct {
	registry *Registry
}

// NewVerifier creates a verifier over the given registry.
func NewVerifier(registry *Registry) *Verifier {
	return &Verifier{registry: registry}
}

// Verify rejects the fact unless its signature verifies against the issuing
// node's registered key over the node-kind-specific signing bytes. It returns
// the node so callers can interpret the fact in context.
func (v *Verifier) Verify(fact Fact) (Node, error) {
	node, ok := v.registry.Node(fact.NodeID)
	if !ok {
		return Node{}, fmt.Errorf("%w: %s", ErrUntrustedNode, fact.NodeID)
	}
	if fact.Signature == "" {
		return Node{}, fmt.Errorf("%w: fact %s carries no signature", ErrInvalidSignature, fact.FactID)
	}

	signed, err := SigningBytes(fact, node.Kind)
	if err != nil {
		return Node{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	digest := sha256.Sum256(signed)

	sig, err := decodeSignature(fact.Signature)
	if err != nil {
		return Node{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	key, err := node.ParseKey()
	if err != nil {
		return Node{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if err := verifyDigest(key, digest[:], sig); err != nil {
		return Node{}, fmt.Errorf("%w: fact %s from %s", ErrInvalidSignature, fact.FactID, fact.NodeID)
	}
	return node, nil
}

// Attestation converts a verified fact into the domain attestation. Callers
// must only invoke this after Verify has succeeded.
func (f Fact) Attestation() (contracts.Attestation, error) {
	var payload contracts.AttestationPayload
	if err := json.Unmarshal(f.Payload, &payload); err != nil {
		return contracts.Attestation{}, fmt.Errorf("federation: decode fact %s payload: %w", f.FactID, err)
	}
	return contracts.Attestation{
		AttestationID:     f.FactID,
		IssuingNodeID:     f.NodeID,
		Type:              f.Type,
		EntityFingerprint: f.EntityFingerprint,
		Payload:           payload,
		DocumentHashes:    f.DocumentHashes,
		IssuedAt:          f.IssuedAt,
		Signature:         f.Signature,
	}, nil
}

func verifyDigest(pubKey crypto.PublicKey, digest, sig []byte) error {
	switch pk := pubKey.(type) {
	case ed25519.PublicKey:
		if !ed25519.Verify(pk, digest, sig) {
			return fmt.Errorf("ed25519 signature verification failed")
		}
		return nil
	case *rsa.PublicKey:
		if err := rsa.VerifyPKCS1v15(pk, crypto.SHA256, digest, sig); err != nil {
			return fmt.Errorf("rsa signature verification failed: %w", err)
		}
		return nil
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(pk, digest, sig) {
			return fmt.Errorf("ecdsa signature verification failed")
		}
		return nil
	default:
		return fmt.Errorf("unsupported key type: %T", pubKey)
	}
}

func decodeSignature(sig string) ([]byte, error) {
	if data, err := base64.StdEncoding.DecodeString(sig); err == nil {
		return data, nil
	}
	if data, err := hex.DecodeString(sig); err == nil {
		return data, nil
	}
	return nil, fmt.Errorf("undecodable signature encoding")
}
