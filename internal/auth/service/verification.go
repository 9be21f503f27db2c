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

// EmailVerificationService issues and consumes email verification tokens.
type EmailVerificationService struct {
	Store  store.Store
	Cache  cache.UserCache
	Mailer Mailer
	Clock  Clock
}

// Issue replaces the user's verification token with a fresh one and emails it.
func (s *EmailVerificationService) Issue(ctx context.Context, user domain.User) error {
	token, err := cryptox.GenerateHexToken(cryptox.TokenSize256)
	if err != nil {
		return fmt.Errorf("generate verification token: %w", err)
	}

	expires := s.Clock.now().Add(domain.EmailVerificationTTL)
	if err := s.Store.Users().SetEmailVerificationToken(ctx, user.ID, token, expires); err != nil {
		return err
	}

	return s.Mailer.SendVerification(ctx, user.Email, user.FullName, token)
}

// Verify marks the owner of token verified. Each token works once.
func (s *EmailVerificationService) Verify(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidVerificationToken
	}

	user, err := s.Store.Users().ConsumeEmailVerificationToken(ctx, token, s.Clock.now())
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidVerificationToken
	}
	if err != nil {
		return err
	}
	invalidate(ctx, s.Cache, user.ID)

	slogx.FromContext(ctx).Info("email verified", slog.String("uid", user.UID))
	return nil
}

// Resend issues a new token. Unknown emails succeed silently so the endpoint
// does not reveal which addresses have accounts.
func (s *EmailVerificationService) Resend(ctx context.Context, email string) error {
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if user.EmailVerified {
		return ErrAlreadyVerified
	}
	return s.Issue(ctx, user)
}
