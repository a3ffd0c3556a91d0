package accounts

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost matches the cost used for existing hashes
const DefaultBcryptCost = 10

// dummyHash is a valid bcrypt digest of a random string. Comparing against it
// keeps the work factor of a failed login independent of whether the email
// exists.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// HashPassword hashes a cleartext password with bcrypt
func HashPassword(clear string, cost int) (string, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(clear), cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether candidate matches the stored hash.
// An empty hash never matches.
func VerifyPassword(hash, candidate string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}

// BurnCompare performs a throwaway bcrypt comparison. Called on lookups that
// miss so response timing does not reveal account existence.
func BurnCompare(candidate string) {
	bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(candidate))
}
