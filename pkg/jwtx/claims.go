package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants. These provide sensible security defaults but
// can be overridden per deployment.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Kind distinguishes access tokens from refresh tokens. Both are signed with
// the same secret so the kind claim is what stops one being used as the other.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Identity is the subject a token pair is issued for.
type Identity struct {
	UserID int64
	UID    string
	Email  string
}

// Claims are the token claims shared by access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Public user identifier.
	UID string `json:"uid"`

	// Email address at the time of issue.
	Email string `json:"email"`

	// Kind of token; see KindAccess and KindRefresh.
	Kind Kind `json:"typ"`
}

// NewClaims builds minimally-correct claims for id.
func NewClaims(id Identity, kind Kind, ttl time.Duration, issuer string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(id.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		UID:   id.UID,
		Email: id.Email,
		Kind:  kind,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim. Two tokens
// issued for the same user within the same second still differ.
func NewJTI() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// UserID parses the numeric subject.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}
