package service

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestSeedSuperadmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := &BootstrapService{Store: env.Store}

	created, err := svc.SeedSuperadmin(ctx, domain.SuperadminSeed{})
	require.NoError(t, err)
	require.False(t, created, "nothing to seed without credentials")

	created, err = svc.SeedSuperadmin(ctx, domain.SuperadminSeed{Email: "Root@Example.com", Password: "root-password"})
	require.NoError(t, err)
	require.True(t, created)

	u, err := env.Store.Users().GetUserByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	require.Equal(t, domain.RoleSuperadmin, u.Role)
	require.True(t, u.EmailVerified)
	require.Equal(t, DefaultSuperadminName, u.FullName)

	// A second start leaves the account alone.
	created, err = svc.SeedSuperadmin(ctx, domain.SuperadminSeed{Email: "root@example.com", Password: "other-password", FullName: "Changed"})
	require.NoError(t, err)
	require.False(t, created)

	res, err := env.Auth.Signin(ctx, "root@example.com", "root-password")
	require.NoError(t, err)
	require.Equal(t, "Super Admin", res.User.FullName)
}
