package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HS256 secret NewHS256 accepts.
const MinSecretLength = 32

// ErrWeakSecret is returned when the signing secret is too short.
var ErrWeakSecret = errors.New("jwtx: secret must be at least 32 bytes")

// Signer is anything that can issue signed tokens.
type Signer interface {
	Alg() string
	Issue(id Identity, kind Kind, ttl time.Duration) (string, error)
}

// HS256 signs and verifies tokens with a shared HMAC-SHA256 secret.
type HS256 struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// Option configures an HS256.
type Option func(*HS256)

// WithIssuer sets the "iss" claim on issued tokens and requires it on
// verification.
func WithIssuer(issuer string) Option {
	return func(h *HS256) { h.issuer = issuer }
}

// WithLeeway allows small clock skew when validating exp and nbf.
func WithLeeway(d time.Duration) Option {
	return func(h *HS256) { h.leeway = d }
}

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(h *HS256) { h.now = now }
}

// NewHS256 creates a signer/verifier from secret.
func NewHS256(secret []byte, opts ...Option) (*HS256, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}

	h := &HS256{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *HS256) Alg() string { return jwt.SigningMethodHS256.Alg() }

// Issue signs a token of the given kind for id.
func (h *HS256) Issue(id Identity, kind Kind, ttl time.Duration) (string, error) {
	claims := NewClaims(id, kind, ttl, h.issuer, h.now().UTC())
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
}
