// Package password hashes and verifies local credentials with bcrypt.
// Pure and stateless; the cost factor is a parameter so operators can raise
// it over time without changing call sites.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinCost is the lowest work factor this package will hash with. Costs
// below it are raised, never honored.
const MinCost = 10

// Hash derives a bcrypt hash of plaintext at the given cost. bcrypt
// generates and embeds a random salt, so equal passwords produce distinct
// hashes.
func Hash(plaintext string, cost int) (string, error) {
	if cost < MinCost {
		cost = MinCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("password: hash: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches the stored hash. The comparison
// is constant time with respect to the password content.
func Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// Cost reports the work factor embedded in a stored hash.
func Cost(hash string) (int, error) {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return 0, fmt.Errorf("password: read cost: %w", err)
	}
	return cost, nil
}
