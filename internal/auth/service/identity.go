package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/cache"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// IdentityService turns verified access token claims into the current user.
type IdentityService struct {
	Store store.Store
	Cache cache.UserCache
}

// Resolve looks the subject up through the cache. A user without a session
// is rejected even while their access token is still valid.
func (s *IdentityService) Resolve(ctx context.Context, claims jwtx.Claims) (domain.CurrentUser, error) {
	id, err := claims.UserID()
	if err != nil {
		return domain.CurrentUser{}, ErrUserNotFound
	}

	cached := s.fromCache(ctx, id)
	if cached == nil {
		user, err := s.load(ctx, id)
		if err != nil {
			return domain.CurrentUser{}, err
		}
		cached = &user
	}

	if cached.IsDeleted() {
		return domain.CurrentUser{}, ErrUserNotFound
	}
	if !cached.HasSession() {
		return domain.CurrentUser{}, ErrSessionExpired
	}
	return cached.Identity(), nil
}

// load reads the user from the store and fills the cache. The version is
// taken first so that a write landing between the read and the fill makes the
// fill a no-op instead of caching the old row.
func (s *IdentityService) load(ctx context.Context, id int64) (domain.CachedUser, error) {
	l := slogx.FromContext(ctx)

	var (
		version int64
		canFill = s.Cache != nil
	)
	if canFill {
		v, err := s.Cache.Version(ctx, id)
		if err != nil {
			l.WarnContext(ctx, "cache version read failed", slog.Int64("user_id", id), slog.Any("error", err))
			canFill = false
		}
		version = v
	}

	user, err := s.Store.Users().GetUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.CachedUser{}, ErrUserNotFound
	}
	if err != nil {
		return domain.CachedUser{}, err
	}

	projection := domain.NewCachedUser(user)
	if canFill {
		if _, err := s.Cache.Fill(ctx, projection, version); err != nil {
			l.WarnContext(ctx, "cache write failed", slog.Int64("user_id", id), slog.Any("error", err))
		}
	}
	return projection, nil
}

func (s *IdentityService) fromCache(ctx context.Context, id int64) *domain.CachedUser {
	if s.Cache == nil {
		return nil
	}
	u, err := s.Cache.Get(ctx, id)
	if err != nil {
		slogx.FromContext(ctx).WarnContext(ctx, "cache read failed", slog.Int64("user_id", id), slog.Any("error", err))
		return nil
	}
	return u
}
