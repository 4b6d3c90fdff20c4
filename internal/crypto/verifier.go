package crypto

import (
	"context"
	"fmt"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

// defaultMaxSkew bounds how far a proof timestamp may drift from the
// verifier's clock in either direction.
const defaultMaxSkew = 5 * time.Minute

// Verifier implements domain.Authorizer by recovering the secp256k1 public
// key from the proof signature and comparing the derived address against the
// claimed principal.
type Verifier struct {
	clock   domain.Clock
	maxSkew time.Duration
}

// NewVerifier creates a Verifier using the given clock for skew checks.
// A zero maxSkew selects the default of five minutes.
func NewVerifier(clock domain.Clock, maxSkew time.Duration) *Verifier {
	if maxSkew <= 0 {
		maxSkew = defaultMaxSkew
	}
	return &Verifier{clock: clock, maxSkew: maxSkew}
}

// RequireProof verifies that the proof was signed by the key behind the
// principal address and that its timestamp is within the allowed skew. Any
// failure is reported as domain.ErrUnauthorized.
func (v *Verifier) RequireProof(_ context.Context, principal string, proof domain.Proof) error {
	if len(proof.Signature) != 65 {
		return fmt.Errorf("%w: malformed signature", domain.ErrUnauthorized)
	}

	skew := v.clock.Now().Sub(time.Unix(proof.Timestamp, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.maxSkew {
		return fmt.Errorf("%w: proof timestamp outside allowed skew", domain.ErrUnauthorized)
	}

	digest := proofDigest(principal, proof.Timestamp)

	// ethcrypto.Sign produces v in {0,1}; normalize {27,28} variants too.
	sig := make([]byte, 65)
	copy(sig, proof.Signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return fmt.Errorf("%w: signature recovery failed", domain.ErrUnauthorized)
	}

	recovered := ethcrypto.PubkeyToAddress(*pubKey)
	if !strings.EqualFold(recovered.Hex(), principal) {
		return fmt.Errorf("%w: signer does not match principal", domain.ErrUnauthorized)
	}
	return nil
}

var _ domain.Authorizer = (*Verifier)(nil)
