package federation_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deedgrid/spine/pkg/contracts"
	"github.com/deedgrid/spine/pkg/federation"
)

func signedFactToken(t *testing.T, n testNode, claims *federation.FactClaims) string {
	t.Helper()
	claims.Issuer = n.node.ID
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(n.priv)
	require.NoError(t, err)
	return token
}

func loanClaims() *federation.FactClaims {
	return &federation.FactClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(issuedAt),
		},
		FactID:          "fact-jws-1",
		AttestationType: "LoanClearedToClose",
		AggregateID:     "txn-1",
		Payload:         map[string]any{"conditional": false},
	}
}

func TestParseFactJWSRoundTrip(t *testing.T) {
	lender := newTestNode(t, "lender-1", federation.NodeLender)
	registry := federation.NewRegistry([]federation.Node{lender.node})

	token := signedFactToken(t, lender, loanClaims())
	fact, node, err := federation.ParseFactJWS(token, registry)
	require.NoError(t, err)

	assert.Equal(t, "lender-1", node.ID)
	assert.Equal(t, "fact-jws-1", fact.FactID)
	assert.Equal(t, contracts.AttestationLoanClearedToClose, fact.Type)
	assert.Equal(t, "txn-1", fact.AggregateID)
	assert.Equal(t, token, fact.Signature)
	assert.True(t, fact.IssuedAt.Equal(issuedAt))
}

func TestParseFactJWSRejectsUnknownIssuer(t *testing.T) {
	lender := newTestNode(t, "lender-1", federation.NodeLender)
	registry := federation.NewRegistry(nil)

	token := signedFactToken(t, lender, loanClaims())
	_, _, err := federation.ParseFactJWS(token, registry)
	assert.ErrorIs(t, err, federation.ErrInvalidSignature)
	assert.ErrorContains(t, err, "not trusted")
}

func TestParseFactJWSRejectsTitleNodes(t *testing.T) {
	title := newTestNode(t, "title-1", federation.NodeTitle)
	registry := federation.NewRegistry([]federation.Node{title.node})

	token := signedFactToken(t, title, loanClaims())
	_, _, err := federation.ParseFactJWS(token, registry)
	require.Error(t, err)
	assert.ErrorContains(t, err, "detached signatures")
}

func TestParseFactJWSRejectsWrongKey(t *testing.T) {
	registered := newTestNode(t, "lender-1", federation.NodeLender)
	impostor := newTestNode(t, "lender-1", federation.NodeLender)
	registry := federation.NewRegistry([]federation.Node{registered.node})

	token := signedFactToken(t, impostor, loanClaims())
	_, _, err := federation.ParseFactJWS(token, registry)
	assert.ErrorIs(t, err, federation.ErrInvalidSignature)
}

func TestParseFactJWSRejectsHMAC(t *testing.T) {
	lender := newTestNode(t, "lender-1", federation.NodeLender)
	registry := federation.NewRegistry([]federation.Node{lender.node})

	claims := loanClaims()
	claims.Issuer = "lender-1"
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, _, err = federation.ParseFactJWS(token, registry)
	assert.ErrorIs(t, err, federation.ErrInvalidSignature)
}

func TestParseFactJWSUnknownTypeYieldsInvalidType(t *testing.T) {
	lender := newTestNode(t, "lender-1", federation.NodeLender)
	registry := federation.NewRegistry([]federation.Node{lender.node})

	claims := loanClaims()
	claims.AttestationType = "SomethingNew"
	token := signedFactToken(t, lender, claims)

	fact, _, err := federation.ParseFactJWS(token, registry)
	require.NoError(t, err)
	assert.False(t, fact.Type.Valid())
}

func TestParseFactJWSExpiredTokenRejected(t *testing.T) {
	lender := newTestNode(t, "lender-1", federation.NodeLender)
	registry := federation.NewRegistry([]federation.Node{lender.node})

	claims := loanClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	token := signedFactToken(t, lender, claims)

	_, _, err := federation.ParseFactJWS(token, registry)
	assert.ErrorIs(t, err, federation.ErrInvalidSignature)
}
