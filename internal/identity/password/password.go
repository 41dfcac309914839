// Package password hashes and verifies user passwords with bcrypt.
package password

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for new hashes.
const DefaultCost = 10

// ErrTooLong is returned when the password exceeds bcrypt's 72 byte limit.
var ErrTooLong = errors.New("password is too long")

// Hasher hashes and verifies passwords.
// Surrounding whitespace is trimmed before both operations.
type Hasher struct {
	cost int
}

// NewHasher creates a hasher with the given bcrypt cost.
// Out of range costs fall back to DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of the normalized plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(normalize(plaintext)), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrTooLong
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches hash.
func (h *Hasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(normalize(plaintext))) == nil
}

func normalize(plaintext string) string {
	return strings.TrimSpace(plaintext)
}
