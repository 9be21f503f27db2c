package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// TokenSize256 provides 256 bits of entropy (64 hex chars).
const TokenSize256 = 32

// GenerateHexToken creates a cryptographically secure random token of the
// specified byte length, hex-encoded. Email verification and password reset
// links use TokenSize256.
func GenerateHexToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

// FingerprintToken returns a deterministic SHA-256 fingerprint of a token,
// base64url-encoded (43 chars).
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// HashToken returns a bcrypt hash suitable for storing a bearer token at rest.
// The fingerprint is hashed instead of the raw token because signed JWTs are
// longer than bcrypt's 72 byte input limit.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(FingerprintToken(token)), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("cryptox: hash token: %w", err)
	}
	return string(hash), nil
}

// VerifyToken reports whether token matches a hash produced by HashToken.
func VerifyToken(token, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(FingerprintToken(token))) == nil
}
