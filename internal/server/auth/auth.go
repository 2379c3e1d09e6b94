package auth

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Authenticator checks one user/password pair. A false result with nil
// error means bad credentials; an error means the store itself failed.
type Authenticator interface {
	Authenticate(user, password string) (bool, error)
}

// HashPassword bcrypt hash of password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword true if password matches hash.
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ConstantTimeEqual compares two secrets (constant-time).
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// IsHash true if stored looks like a bcrypt hash ($2a$, $2b$, $2y$).
func IsHash(stored string) bool {
	return len(stored) == 60 &&
		(strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$"))
}

// Verify checks password against a stored record: bcrypt if hashed, else plaintext.
func Verify(password, stored string) bool {
	if IsHash(stored) {
		return CheckPassword(password, stored)
	}
	return ConstantTimeEqual(password, stored)
}
