package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/cache"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// SignupInput is a validated signup request.
type SignupInput struct {
	Email    string
	Password string
	FullName string
}

// AuthService owns sessions: signup, signin, refresh and logout. A user has
// at most one session, represented by the hash of its refresh token.
type AuthService struct {
	Store        store.Store
	Cache        cache.UserCache
	Tokens       Tokens
	Verification *EmailVerificationService
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

func (s *AuthService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *AuthService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

// Signup creates a regular, unverified account and signs it in.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (domain.AuthResult, error) {
	l := slogx.FromContext(ctx)
	email := domain.NormalizeEmail(in.Email)

	if _, err := s.Store.Users().GetUserByEmail(ctx, email); err == nil {
		return domain.AuthResult{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.AuthResult{}, err
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.Store.Users().CreateUser(ctx, domain.User{
		UID:          idx.NewUID(),
		Email:        email,
		PasswordHash: hash,
		FullName:     in.FullName,
		Role:         domain.RoleRegular,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost a race with a concurrent signup for the same address.
		return domain.AuthResult{}, ErrEmailTaken
	}
	if err != nil {
		return domain.AuthResult{}, err
	}

	l.Info("user signed up", slog.String("uid", user.UID))

	// The account stands even if the email cannot be sent; the user can
	// ask for another.
	if s.Verification != nil {
		if err := s.Verification.Issue(ctx, user); err != nil {
			l.Error("failed to send verification email", slog.String("uid", user.UID), slog.Any("error", err))
		}
	}

	return s.startSession(ctx, user)
}

// Signin checks credentials and replaces any existing session. Unknown emails
// and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Signin(ctx context.Context, email, password string) (domain.AuthResult, error) {
	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		cryptox.EqualiseTiming(password)
		return domain.AuthResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.AuthResult{}, err
	}

	if !cryptox.VerifyPassword(password, user.PasswordHash) {
		slogx.FromContext(ctx).Info("signin rejected", slog.String("uid", user.UID))
		return domain.AuthResult{}, ErrInvalidCredentials
	}

	return s.startSession(ctx, user)
}

// Logout ends the user's session. Logging out twice is not an error.
func (s *AuthService) Logout(ctx context.Context, userID int64) error {
	err := s.Store.Users().SetRefreshTokenHash(ctx, userID, nil)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	invalidate(ctx, s.Cache, userID)
	return nil
}

// Refresh exchanges the current refresh token for a new pair. The presented
// token stops working once this returns.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.AuthResult, error) {
	claims, err := s.Tokens.Verify(refreshToken, jwtx.KindRefresh)
	if err != nil {
		return domain.AuthResult{}, ErrInvalidRefreshToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return domain.AuthResult{}, ErrInvalidRefreshToken
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.AuthResult{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return domain.AuthResult{}, err
	}

	if user.RefreshTokenHash == nil || !cryptox.VerifyToken(refreshToken, *user.RefreshTokenHash) {
		return domain.AuthResult{}, ErrInvalidRefreshToken
	}

	pair, newHash, err := s.issuePair(user)
	if err != nil {
		return domain.AuthResult{}, err
	}

	// Only the first of several concurrent rotations still finds the old hash.
	err = s.Store.Users().SwapRefreshTokenHash(ctx, user.ID, *user.RefreshTokenHash, newHash)
	if errors.Is(err, store.ErrNotFound) {
		return domain.AuthResult{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return domain.AuthResult{}, err
	}
	invalidate(ctx, s.Cache, user.ID)

	user.RefreshTokenHash = &newHash
	return domain.AuthResult{Tokens: pair, User: user}, nil
}

// startSession issues a pair and stores its refresh hash, replacing any
// previous session.
func (s *AuthService) startSession(ctx context.Context, user domain.User) (domain.AuthResult, error) {
	pair, hash, err := s.issuePair(user)
	if err != nil {
		return domain.AuthResult{}, err
	}

	if err := s.Store.Users().SetRefreshTokenHash(ctx, user.ID, &hash); err != nil {
		return domain.AuthResult{}, err
	}
	invalidate(ctx, s.Cache, user.ID)

	user.RefreshTokenHash = &hash
	return domain.AuthResult{Tokens: pair, User: user}, nil
}

func (s *AuthService) issuePair(user domain.User) (domain.TokenPair, string, error) {
	id := jwtx.Identity{UserID: user.ID, UID: user.UID, Email: user.Email}

	access, err := s.Tokens.Issue(id, jwtx.KindAccess, s.accessTTL())
	if err != nil {
		return domain.TokenPair{}, "", fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.Tokens.Issue(id, jwtx.KindRefresh, s.refreshTTL())
	if err != nil {
		return domain.TokenPair{}, "", fmt.Errorf("issue refresh token: %w", err)
	}

	hash, err := cryptox.HashToken(refresh)
	if err != nil {
		return domain.TokenPair{}, "", fmt.Errorf("hash refresh token: %w", err)
	}

	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, hash, nil
}
