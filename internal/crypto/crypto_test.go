package crypto

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

// fixed test key, do not use anywhere real
const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestProofRoundTrip(t *testing.T) {
	signer, err := NewSigner(testKeyHex)
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	proof, err := signer.SignProof(now.Unix())
	require.NoError(t, err)
	require.Len(t, proof.Signature, 65)

	verifier := NewVerifier(fixedClock{now: now}, 0)
	assert.NoError(t, verifier.RequireProof(context.Background(), signer.Address(), proof))
}

func TestProofWrongPrincipal(t *testing.T) {
	signer, err := NewSigner(testKeyHex)
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	proof, err := signer.SignProof(now.Unix())
	require.NoError(t, err)

	verifier := NewVerifier(fixedClock{now: now}, 0)
	err = verifier.RequireProof(context.Background(), "0x0000000000000000000000000000000000000001", proof)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestProofStaleTimestamp(t *testing.T) {
	signer, err := NewSigner(testKeyHex)
	require.NoError(t, err)

	signedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	proof, err := signer.SignProof(signedAt.Unix())
	require.NoError(t, err)

	verifier := NewVerifier(fixedClock{now: signedAt.Add(10 * time.Minute)}, 5*time.Minute)
	err = verifier.RequireProof(context.Background(), signer.Address(), proof)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestProofMalformedSignature(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	verifier := NewVerifier(fixedClock{now: now}, 0)

	err := verifier.RequireProof(context.Background(), "0x0000000000000000000000000000000000000001", domain.Proof{
		Timestamp: now.Unix(),
		Signature: []byte{1, 2, 3},
	})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestProofDigestCaseInsensitive(t *testing.T) {
	a := proofDigest("0xAbCd000000000000000000000000000000000000", 42)
	b := proofDigest("0xabcd000000000000000000000000000000000000", 42)
	assert.Equal(t, a, b)
}

func TestHMACHeadersDeterministic(t *testing.T) {
	auth := &HMACAuth{Key: "test-key", Secret: "test-secret"}

	h1 := auth.HeadersAt("POST", "/v1/transfers", `{"amount":100}`, 1700000000)
	h2 := auth.HeadersAt("POST", "/v1/transfers", `{"amount":100}`, 1700000000)
	assert.Equal(t, h1, h2)

	assert.Equal(t, "test-key", h1["X-CUSTODY-API-KEY"])
	assert.Equal(t, "1700000000", h1["X-CUSTODY-TIMESTAMP"])
	assert.NotEmpty(t, h1["X-CUSTODY-SIGNATURE"])

	// Different body, different signature.
	h3 := auth.HeadersAt("POST", "/v1/transfers", `{"amount":101}`, 1700000000)
	assert.NotEqual(t, h1["X-CUSTODY-SIGNATURE"], h3["X-CUSTODY-SIGNATURE"])
}

func TestHMACAuthStringRedacts(t *testing.T) {
	auth := &HMACAuth{Key: "verylongkey", Secret: "verylongsecret"}
	s := auth.String()
	assert.NotContains(t, s, "verylongkey")
	assert.NotContains(t, s, "verylongsecret")
}
