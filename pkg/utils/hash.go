package utils

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashOrRead returns the bcrypt hash of secret, passing through values that
// are already bcrypt hashes so operators can supply either form.
func HashOrRead(secret string) ([]byte, error) {
	if strings.HasPrefix(secret, "$2a$") || strings.HasPrefix(secret, "$2b$") || strings.HasPrefix(secret, "$2y$") {
		return []byte(secret), nil
	}
	return bcrypt.GenerateFromPassword([]byte(secret), 10)
}
