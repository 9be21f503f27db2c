package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. Repositories hang off it as methods so a transaction-scoped
// Store can hand out the same repositories bound to the transaction.
type Store interface {
	Users() Users

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Users is the user record repository. Every lookup ignores soft-deleted rows
// and every mutation bumps updated_at.
type Users interface {
	// GetUserByID returns a live user by numeric id.
	GetUserByID(ctx context.Context, id int64) (domain.User, error)

	// GetUserByUID returns a live user by public id.
	GetUserByUID(ctx context.Context, uid string) (domain.User, error)

	// GetUserByEmail returns the live user owning the normalised email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts u and returns it with its id and timestamps.
	// Returns ErrAlreadyExists if a live user already has the email.
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)

	// ListUsers returns live users, newest first.
	ListUsers(ctx context.Context, offset, limit int) ([]domain.User, error)

	// CountUsers counts live users.
	CountUsers(ctx context.Context) (int, error)

	// UpdateUser sets whichever of fullName and role are non-nil.
	UpdateUser(ctx context.Context, id int64, fullName *string, role *domain.Role) (domain.User, error)

	// UpdatePasswordHash replaces the password hash.
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error

	// SetRefreshTokenHash stores hash as the current session; nil ends it.
	SetRefreshTokenHash(ctx context.Context, id int64, hash *string) error

	// SwapRefreshTokenHash replaces the stored hash only if it still equals
	// oldHash. Returns ErrNotFound when it does not, so at most one of several
	// concurrent rotations of the same token succeeds.
	SwapRefreshTokenHash(ctx context.Context, id int64, oldHash, newHash string) error

	// SetEmailVerificationToken replaces any outstanding verification token.
	SetEmailVerificationToken(ctx context.Context, id int64, token string, expires time.Time) error

	// ConsumeEmailVerificationToken atomically marks the owner of an unexpired
	// token verified and clears the token. Returns ErrNotFound otherwise.
	ConsumeEmailVerificationToken(ctx context.Context, token string, now time.Time) (domain.User, error)

	// SetPasswordResetToken replaces any outstanding reset token.
	SetPasswordResetToken(ctx context.Context, id int64, token string, expires time.Time) error

	// ConsumePasswordResetToken atomically sets the new password hash for the
	// owner of an unexpired token, clears the token and ends the session.
	// Returns ErrNotFound otherwise.
	ConsumePasswordResetToken(ctx context.Context, token, newHash string, now time.Time) (domain.User, error)

	// SoftDeleteUser stamps deleted_at and ends the session.
	SoftDeleteUser(ctx context.Context, id int64, at time.Time) error
}
