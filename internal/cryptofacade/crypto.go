// Package cryptofacade centralizes the two cryptographic primitives the node
// depends on: content hashing (Blake2b-256) and peer/account signing
// (Ed25519). Nothing here implements the primitives themselves; this package
// is a thin, testable seam between the rest of the node and
// golang.org/x/crypto / crypto/ed25519, so a future algorithm change touches
// one file instead of every caller.
package cryptofacade

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// HashSize is the fixed digest length used throughout the node.
const HashSize = 32

// Hash is a content hash. The zero Hash is a sentinel for "no value yet" and
// must never be produced by Sum (see merkle.Hash sort invariant).
type Hash [HashSize]byte

// IsZero reports whether h is the all-zero sentinel.
func (h Hash) IsZero() bool {
	var zero Hash
	return h == zero
}

func (h Hash) String() string {
	return fmt.Sprintf("%x", h[:])
}

// Sum returns the Blake2b-256 digest of data.
func Sum(data []byte) Hash {
	return Hash(blake2b.Sum256(data))
}

// SumAll hashes the concatenation of every argument in order, without
// allocating an intermediate concatenated slice.
func SumAll(parts ...[]byte) Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only errors on an oversized key, which we never pass.
		panic(fmt.Sprintf("cryptofacade: blake2b.New256: %v", err))
	}
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// KeyPair is an Ed25519 signing keypair.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh Ed25519 keypair.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("cryptofacade: generate key pair: %w", err)
	}
	return KeyPair{Public: pub, Private: priv}, nil
}

// Sign signs payload with the keypair's private key.
func (kp KeyPair) Sign(payload []byte) []byte {
	return ed25519.Sign(kp.Private, payload)
}

// ErrSignatureVerificationFailed is returned by Verify when the signature
// does not match the payload under the given public key.
var ErrSignatureVerificationFailed = errors.New("cryptofacade: signature verification failed")

// Verify checks sig over payload against pubKey.
func Verify(pubKey ed25519.PublicKey, payload, sig []byte) error {
	if len(pubKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: bad public key length %d", ErrSignatureVerificationFailed, len(pubKey))
	}
	if !ed25519.Verify(pubKey, payload, sig) {
		return ErrSignatureVerificationFailed
	}
	return nil
}
