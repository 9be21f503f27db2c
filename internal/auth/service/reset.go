package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/cache"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// PasswordResetService runs the forgot-password flow.
type PasswordResetService struct {
	Store  store.Store
	Cache  cache.UserCache
	Mailer Mailer
	Clock  Clock
}

// Request emails a reset link if email belongs to an account. The caller
// always sees success; failures are only logged.
func (s *PasswordResetService) Request(ctx context.Context, email string) {
	l := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		l.Info("password reset requested for unknown email")
		return
	}
	if err != nil {
		l.Error("password reset lookup failed", slog.Any("error", err))
		return
	}

	if err := s.issue(ctx, user); err != nil {
		l.Error("failed to send password reset", slog.String("uid", user.UID), slog.Any("error", err))
	}
}

func (s *PasswordResetService) issue(ctx context.Context, user domain.User) error {
	token, err := cryptox.GenerateHexToken(cryptox.TokenSize256)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	expires := s.Clock.now().Add(domain.PasswordResetTTL)
	if err := s.Store.Users().SetPasswordResetToken(ctx, user.ID, token, expires); err != nil {
		return err
	}

	return s.Mailer.SendPasswordReset(ctx, user.Email, user.FullName, token)
}

// Reset sets a new password for the owner of token and ends their session.
func (s *PasswordResetService) Reset(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return ErrInvalidResetToken
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user, err := s.Store.Users().ConsumePasswordResetToken(ctx, token, hash, s.Clock.now())
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return err
	}
	invalidate(ctx, s.Cache, user.ID)

	slogx.FromContext(ctx).Info("password reset", slog.String("uid", user.UID))
	return nil
}
