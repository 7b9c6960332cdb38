// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme)
// serialization and SHA-256 fingerprints. Signature payloads and entity
// fingerprints are always computed over canonical bytes so that two parties
// serializing the same value agree on what was signed.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// JCS returns the RFC 8785 canonical JSON representation of v. Struct json
// tags are respected; key order and number formatting are normalized.
func JCS(v any) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jcs: pre-marshal failed: %w", err)
	}
	canonical, err := jcs.Transform(intermediate)
	if err != nil {
		return nil, fmt.Errorf("jcs: transform failed: %w", err)
	}
	return canonical, nil
}

// HashBytes computes the SHA-256 hash of raw bytes as a hex string.
func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// CanonicalHash returns the SHA-256 hex digest of the canonical form of v.
func CanonicalHash(v any) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// EntityFingerprint derives the stable fingerprint federated nodes use to
// reference an entity without sharing internal identifiers directly.
func EntityFingerprint(entityType, entityID string) string {
	b, _ := JCS(map[string]string{
		"entity_type": entityType,
		"entity_id":   entityID,
	})
	return HashBytes(b)
}
