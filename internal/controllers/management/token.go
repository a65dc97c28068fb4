package management

import (
	"crypto/subtle"

	"github.com/google/uuid"
)

// generateAuthToken returns a standard UUID string with hyphens.
func generateAuthToken() string {
	return uuid.New().String()
}

// tokenMatches compares a presented token against the configured one in constant time.
func tokenMatches(presented, expected string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}
