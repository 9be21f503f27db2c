package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// DefaultSuperadminName is used when the seed does not name the account.
const DefaultSuperadminName = "Super Admin"

var ErrBootstrapFailedToCreateAdmin = errors.New("failed to create superadmin user")

// BootstrapService seeds the first superadmin at start-up.
type BootstrapService struct {
	Store store.Store
}

// SeedSuperadmin creates a verified superadmin for seed unless a live account
// already owns the email. It reports whether an account was created.
func (s *BootstrapService) SeedSuperadmin(ctx context.Context, seed domain.SuperadminSeed) (bool, error) {
	l := slogx.FromContext(ctx)

	if seed.Email == "" || seed.Password == "" {
		return false, nil
	}
	if seed.FullName == "" {
		seed.FullName = DefaultSuperadminName
	}

	passHash, err := cryptox.HashPassword(seed.Password)
	if err != nil {
		l.Error("failed to hash superadmin password", slog.Any("error", err))
		return false, ErrBootstrapFailedToCreateAdmin
	}

	created := false
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.Users().GetUserByEmail(ctx, seed.Email)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		user, err := tx.Users().CreateUser(ctx, domain.User{
			UID:           idx.NewUID(),
			Email:         seed.Email,
			PasswordHash:  passHash,
			FullName:      seed.FullName,
			Role:          domain.RoleSuperadmin,
			EmailVerified: true,
		})
		if err != nil {
			l.Error("failed to create superadmin", slog.Any("error", err))
			return ErrBootstrapFailedToCreateAdmin
		}

		created = true
		l.Info("seeded superadmin", slog.String("uid", user.UID))
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}
