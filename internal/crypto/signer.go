package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

// Signer produces proof-of-principal signatures over secp256k1. The
// principal string is the Ethereum address derived from the key, and the
// signed message binds the principal to a timestamp so proofs expire.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key.
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}

	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the principal string this signer proves, the hex form of
// the Ethereum address derived from its key.
func (s *Signer) Address() string {
	return s.address.Hex()
}

// SignProof signs the principal/timestamp pair and returns a Proof the
// Verifier will accept for this signer's address.
func (s *Signer) SignProof(timestamp int64) (domain.Proof, error) {
	digest := proofDigest(s.Address(), timestamp)

	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return domain.Proof{}, fmt.Errorf("crypto/signer: signing: %w", err)
	}

	return domain.Proof{
		Timestamp: timestamp,
		Signature: sig,
	}, nil
}

// proofDigest hashes the canonical proof message. Addresses are lowercased
// before hashing so checksum casing never changes the digest.
func proofDigest(principal string, timestamp int64) []byte {
	msg := strings.ToLower(principal) + ":" + strconv.FormatInt(timestamp, 10)
	return ethcrypto.Keccak256([]byte(msg))
}
