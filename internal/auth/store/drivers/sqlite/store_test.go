package sqlite

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	// Applying twice is a no-op.
	require.NoError(t, s.ApplyMigrations())
	return s
}

func createUser(t *testing.T, s store.Store, email string) domain.User {
	t.Helper()

	u, err := s.Users().CreateUser(context.Background(), domain.User{
		UID:          idx.NewUID(),
		Email:        email,
		PasswordHash: "hash",
		FullName:     "Test User",
	})
	require.NoError(t, err)
	return u
}

func ptr[T any](v T) *T { return &v }

func TestWithTimeFormat(t *testing.T) {
	require.Equal(t, ":memory:?_time_format=sqlite", withTimeFormat(":memory:"))
	require.Equal(t, "file:x.db?cache=shared&_time_format=sqlite", withTimeFormat("file:x.db?cache=shared"))
	require.Equal(t, "x.db?_time_format=sqlite", withTimeFormat("x.db?_time_format=sqlite"))
}

func TestUsers_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := createUser(t, s, "  Alice@Example.COM ")
	require.Positive(t, u.ID)
	require.Equal(t, "alice@example.com", u.Email)
	require.Equal(t, domain.RoleRegular, u.Role)
	require.False(t, u.EmailVerified)
	require.Nil(t, u.RefreshTokenHash)
	require.False(t, u.CreatedAt.IsZero())

	byID, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.UID, byID.UID)

	byUID, err := s.Users().GetUserByUID(ctx, u.UID)
	require.NoError(t, err)
	require.Equal(t, u.ID, byUID.ID)

	byEmail, err := s.Users().GetUserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	_, err = s.Users().GetUserByID(ctx, 9999)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUsers_DuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := createUser(t, s, "bob@example.com")

	_, err := s.Users().CreateUser(ctx, domain.User{
		UID: idx.NewUID(), Email: "BOB@example.com", PasswordHash: "h", FullName: "Bob",
	})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	// Soft deletion frees the address.
	require.NoError(t, s.Users().SoftDeleteUser(ctx, u.ID, time.Now()))
	_, err = s.Users().GetUserByID(ctx, u.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	again := createUser(t, s, "bob@example.com")
	require.NotEqual(t, u.ID, again.ID)

	require.ErrorIs(t, s.Users().SoftDeleteUser(ctx, u.ID, time.Now()), store.ErrNotFound)
}

func TestUsers_ListAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := range 5 {
		createUser(t, s, fmt.Sprintf("user%d@example.com", i))
	}

	n, err := s.Users().CountUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	page, err := s.Users().ListUsers(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	// Same-second inserts fall back to id order, newest first.
	require.Equal(t, "user4@example.com", page[0].Email)
	require.Equal(t, "user3@example.com", page[1].Email)

	last, err := s.Users().ListUsers(ctx, 4, 2)
	require.NoError(t, err)
	require.Len(t, last, 1)
	require.Equal(t, "user0@example.com", last[0].Email)

	empty, err := s.Users().ListUsers(ctx, 10, 2)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestUsers_UpdateUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "carol@example.com")

	updated, err := s.Users().UpdateUser(ctx, u.ID, ptr("Carol Danvers"), nil)
	require.NoError(t, err)
	require.Equal(t, "Carol Danvers", updated.FullName)
	require.Equal(t, domain.RoleRegular, updated.Role)

	updated, err = s.Users().UpdateUser(ctx, u.ID, nil, ptr(domain.RoleAdmin))
	require.NoError(t, err)
	require.Equal(t, "Carol Danvers", updated.FullName)
	require.Equal(t, domain.RoleAdmin, updated.Role)

	_, err = s.Users().UpdateUser(ctx, 9999, ptr("x"), nil)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUsers_RefreshTokenSwap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "dave@example.com")

	require.NoError(t, s.Users().SetRefreshTokenHash(ctx, u.ID, ptr("h1")))
	require.NoError(t, s.Users().SwapRefreshTokenHash(ctx, u.ID, "h1", "h2"))
	require.ErrorIs(t, s.Users().SwapRefreshTokenHash(ctx, u.ID, "h1", "h3"), store.ErrNotFound)

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "h2", *got.RefreshTokenHash)

	require.NoError(t, s.Users().SetRefreshTokenHash(ctx, u.ID, nil))
	got, err = s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, got.RefreshTokenHash)
}

func TestUsers_SwapIsExclusive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "erin@example.com")
	require.NoError(t, s.Users().SetRefreshTokenHash(ctx, u.ID, ptr("start")))

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Users().SwapRefreshTokenHash(ctx, u.ID, "start", fmt.Sprintf("next-%d", i)); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, winners)
}

func TestUsers_EmailVerificationToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "frank@example.com")
	now := time.Now().UTC()

	require.NoError(t, s.Users().SetEmailVerificationToken(ctx, u.ID, "tok-1", now.Add(time.Hour)))
	// Replacing the token invalidates the old one.
	require.NoError(t, s.Users().SetEmailVerificationToken(ctx, u.ID, "tok-2", now.Add(time.Hour)))

	_, err := s.Users().ConsumeEmailVerificationToken(ctx, "tok-1", now)
	require.ErrorIs(t, err, store.ErrNotFound)

	verified, err := s.Users().ConsumeEmailVerificationToken(ctx, "tok-2", now)
	require.NoError(t, err)
	require.True(t, verified.EmailVerified)
	require.Nil(t, verified.EmailVerificationToken)
	require.Nil(t, verified.EmailVerificationExpires)

	_, err = s.Users().ConsumeEmailVerificationToken(ctx, "tok-2", now)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUsers_ExpiredTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "grace@example.com")
	expires := time.Now().UTC().Add(time.Hour)

	require.NoError(t, s.Users().SetEmailVerificationToken(ctx, u.ID, "verify", expires))
	require.NoError(t, s.Users().SetPasswordResetToken(ctx, u.ID, "reset", expires))

	// A token is dead at its expiry instant.
	_, err := s.Users().ConsumeEmailVerificationToken(ctx, "verify", expires)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Users().ConsumePasswordResetToken(ctx, "reset", "new-hash", expires.Add(time.Second))
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Users().ConsumeEmailVerificationToken(ctx, "verify", expires.Add(-time.Second))
	require.NoError(t, err)
}

func TestUsers_PasswordReset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := createUser(t, s, "heidi@example.com")
	now := time.Now().UTC()

	require.NoError(t, s.Users().SetRefreshTokenHash(ctx, u.ID, ptr("session")))
	require.NoError(t, s.Users().SetPasswordResetToken(ctx, u.ID, "reset", now.Add(time.Hour)))

	got, err := s.Users().ConsumePasswordResetToken(ctx, "reset", "new-hash", now)
	require.NoError(t, err)
	require.Equal(t, "new-hash", got.PasswordHash)
	require.Nil(t, got.PasswordResetToken)
	require.Nil(t, got.RefreshTokenHash, "reset ends the session")

	_, err = s.Users().ConsumePasswordResetToken(ctx, "reset", "other", now)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Users().UpdatePasswordHash(ctx, u.ID, "third"))
	got, err = s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "third", got.PasswordHash)
}

func TestWithTx_Rollback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.Users().CreateUser(ctx, domain.User{
			UID: idx.NewUID(), Email: "ivan@example.com", PasswordHash: "h", FullName: "Ivan",
		})
		require.NoError(t, err)
		return fmt.Errorf("abort")
	})
	require.EqualError(t, err, "abort")

	_, err = s.Users().GetUserByEmail(ctx, "ivan@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.Users().CreateUser(ctx, domain.User{
			UID: idx.NewUID(), Email: "ivan@example.com", PasswordHash: "h", FullName: "Ivan",
		})
		return err
	}))

	_, err = s.Users().GetUserByEmail(ctx, "ivan@example.com")
	require.NoError(t, err)
}
