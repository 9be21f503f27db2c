package cryptox

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt work factor used for passwords and refresh tokens.
const PasswordCost = 10

// dummyHash is a valid bcrypt hash of a random string. It lets callers spend
// the same time on unknown accounts as on known ones.
var dummyHash = mustHash("gatekeeper-timing-equaliser")

// HashPassword returns a bcrypt hash of the password at PasswordCost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("cryptox: hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the bcrypt hash. A malformed
// hash never matches.
func VerifyPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// EqualiseTiming performs a throwaway comparison so that a lookup miss costs
// roughly as much as a password mismatch.
func EqualiseTiming(password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
}

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

func mustHash(s string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(s), PasswordCost)
	if err != nil {
		panic(fmt.Sprintf("cryptox: failed to build dummy hash: %v", err))
	}
	return string(h)
}
