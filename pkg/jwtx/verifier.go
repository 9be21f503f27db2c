package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates a JWT and gives you back the claims if it's legit.
type Verifier interface {
	Verify(token string, kind Kind) (Claims, error)
}

// ErrInvalidToken covers every reason a token is rejected. Callers never
// learn whether the signature, expiry or kind was at fault.
var ErrInvalidToken = errors.New("jwtx: invalid token")

var (
	_ Signer   = (*HS256)(nil)
	_ Verifier = (*HS256)(nil)
)

// Verify validates the token string, its expiry and its kind, and returns the
// parsed claims.
func (h *HS256) Verify(tokenStr string, kind Kind) (Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(h.leeway),
		jwt.WithTimeFunc(func() time.Time { return h.now().UTC() }),
	}
	if h.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(h.issuer))
	}

	claims := &Claims{}
	token, err := jwt.NewParser(parserOpts...).ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return h.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	if claims.Kind != kind {
		return Claims{}, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return Claims{}, ErrInvalidToken
	}

	return *claims, nil
}
