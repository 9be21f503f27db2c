package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/cache"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// Tokens issues and verifies signed tokens. *jwtx.HS256 implements it.
type Tokens interface {
	jwtx.Signer
	jwtx.Verifier
}

// Mailer sends the account emails. *mail.Mailer implements it.
type Mailer interface {
	SendVerification(ctx context.Context, to, name, token string) error
	SendPasswordReset(ctx context.Context, to, name, token string) error
}

// Clock returns the current time. A nil Clock means time.Now.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// invalidate drops the cached projection of id. The store write it follows
// has already committed, so a failure is logged and the TTL bounds staleness.
func invalidate(ctx context.Context, c cache.UserCache, id int64) {
	if c == nil {
		return
	}
	if err := c.Invalidate(ctx, id); err != nil {
		slogx.FromContext(ctx).WarnContext(ctx, "cache invalidation failed",
			slog.Int64("user_id", id),
			slog.Any("error", err),
		)
	}
}
