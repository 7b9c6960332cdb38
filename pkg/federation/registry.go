// Package federation is the trust boundary between the spine and external
// organizations. Every externally submitted fact must verify against the
// issuing node's registered public key before it is interpreted; a fact that
// fails verification never reaches folding or readiness computation. Verified
// facts are interpreted, never executed: external nodes cannot mutate
// transaction state, only contribute inputs.
package federation

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NodeKind classifies a federated organization.
type NodeKind string

const (
	NodeLender    NodeKind = "lender"
	NodeTitle     NodeKind = "title"
	NodeInsurance NodeKind = "insurance"
)

// Node is a registered federated organization and its verification key.
type Node struct {
	ID        string   `yaml:"id"`
	Kind      NodeKind `yaml:"kind"`
	KeyType   string   `yaml:"key_type"`   // ed25519 | rsa | ecdsa
	PublicKey string   `yaml:"public_key"` // base64: raw key for ed25519, PKIX DER otherwise
	Enabled   bool     `yaml:"enabled"`
}

// ParseKey decodes the node's public key into a crypto.PublicKey.
func (n Node) ParseKey() (crypto.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(n.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("node %s: invalid public key encoding: %w", n.ID, err)
	}
	switch n.KeyType {
	case "ed25519":
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("node %s: invalid ed25519 key size %d", n.ID, len(raw))
		}
		return ed25519.PublicKey(raw), nil
	case "rsa":
		key, err := x509.ParsePKIXPublicKey(raw)
		if err != nil {
			return nil, fmt.Errorf("node %s: parse rsa key: %w", n.ID, err)
		}
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("node %s: key is not RSA", n.ID)
		}
		return rsaKey, nil
	case "ecdsa":
		key, err := x509.ParsePKIXPublicKey(raw)
		if err != nil {
			return nil, fmt.Errorf("node %s: parse ecdsa key: %w", n.ID, err)
		}
		ecKey, ok := key.(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("node %s: key is not ECDSA", n.ID)
		}
		return ecKey, nil
	default:
		return nil, fmt.Errorf("node %s: unsupported key type %q", n.ID, n.KeyType)
	}
}

// Registry holds the registered federated nodes keyed by ID.
type Registry struct {
	nodes map[string]Node
}

// NewRegistry builds a registry from a node list. Later duplicates win.
func NewRegistry(nodes []Node) *Registry {
	r := &Registry{nodes: make(map[string]Node, len(nodes))}
	for _, n := range nodes {
		r.nodes[n.ID] = n
	}
	return r
}

// registryFile is the YAML document shape of a trust registry.
type registryFile struct {
	Nodes []Node `yaml:"nodes"`
}

// LoadRegistry reads a trust registry from a YAML file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load registry %q: %w", path, err)
	}
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse registry %q: %w", path, err)
	}
	return NewRegistry(file.Nodes), nil
}

// Node returns the registered node by ID. A disabled node is returned with
// ok=false the same as an unknown one: its facts are rejected regardless of
// signature validity.
func (r *Registry) Node(id string) (Node, bool) {
	n, ok := r.nodes[id]
	if !ok || !n.Enabled {
		return Node{}, false
	}
	return n, true
}
