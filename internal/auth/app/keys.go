package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

// tokenLeeway absorbs clock skew between replicas.
const tokenLeeway = 5 * time.Second

// InitTokens builds the HS256 signer/verifier from the configured secret.
//
// Access and refresh tokens share the secret; the "typ" claim keeps one from
// being accepted as the other. Rotating JWT_SECRET invalidates every
// outstanding token, which ends all sessions.
func InitTokens(cfg Config, logger *slog.Logger) (*jwtx.HS256, error) {
	tokens, err := jwtx.NewHS256([]byte(cfg.JWTSecret),
		jwtx.WithIssuer(cfg.JWTIssuer),
		jwtx.WithLeeway(tokenLeeway),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token signer: %w", err)
	}

	logger.Info("token signer ready",
		"algorithm", tokens.Alg(),
		"issuer", cfg.JWTIssuer,
		"access_ttl", cfg.AccessTTL,
		"refresh_ttl", cfg.RefreshTTL,
	)
	return tokens, nil
}
