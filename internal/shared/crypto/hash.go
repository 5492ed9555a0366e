// Package crypto wraps credential hashing for the identity flows.
//
// Full national identifiers are never persisted in recoverable form: storage
// keeps a salted bcrypt digest, and verification compares the digest against
// the raw string the patient typed. bcrypt embeds a per-hash salt and its
// comparison runs in constant time, so the check leaks no timing information
// about how many leading bytes of a digest match.
package crypto

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher produces and verifies one-way credential digests.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(digest, secret string) bool
}

// BcryptHasher implements Hasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a hasher with the given cost.
// A cost of 0 uses bcrypt's default.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns a salted one-way digest of the secret.
func (h *BcryptHasher) Hash(secret string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash credential: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether the secret matches the digest. Any malformed digest
// is treated as a non-match rather than an error; a corrupt stored hash must
// not be distinguishable from a wrong credential at the login surface.
func (h *BcryptHasher) Verify(digest, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}
