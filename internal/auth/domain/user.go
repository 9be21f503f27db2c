package domain

import (
	"strings"
	"time"
)

type User struct {
	ID           int64
	UID          string // public identifier (ULID)
	Email        string // normalised, see NormalizeEmail
	PasswordHash string // bcrypt
	FullName     string
	Role         Role

	EmailVerified bool

	// RefreshTokenHash is the bcrypt hash of the current refresh token. Nil
	// means the user has no session.
	RefreshTokenHash *string

	EmailVerificationToken   *string
	EmailVerificationExpires *time.Time

	PasswordResetToken   *string
	PasswordResetExpires *time.Time

	// DeletedAt marks a soft-deleted account. Deleted accounts are invisible
	// to every lookup and do not reserve their email.
	DeletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeEmail trims and lower-cases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CachedUser is the projection kept in the identity cache. RefreshToken holds
// the stored hash, never a token.
type CachedUser struct {
	ID           int64      `json:"id"`
	UID          string     `json:"uid"`
	Email        string     `json:"email"`
	FullName     string     `json:"fullName"`
	Role         Role       `json:"role"`
	RefreshToken *string    `json:"refreshToken"`
	DeletedAt    *time.Time `json:"deletedAt"`
}

// NewCachedUser projects u for the cache.
func NewCachedUser(u User) CachedUser {
	return CachedUser{
		ID:           u.ID,
		UID:          u.UID,
		Email:        u.Email,
		FullName:     u.FullName,
		Role:         u.Role,
		RefreshToken: u.RefreshTokenHash,
		DeletedAt:    u.DeletedAt,
	}
}

// HasSession reports whether the user holds a refresh token.
func (c CachedUser) HasSession() bool { return c.RefreshToken != nil }

// IsDeleted reports whether the account has been soft-deleted.
func (c CachedUser) IsDeleted() bool { return c.DeletedAt != nil }

// CurrentUser is the resolved identity of an authenticated request.
type CurrentUser struct {
	ID       int64
	UID      string
	Email    string
	FullName string
	Role     Role
}

// Identity returns the request identity for a cached projection.
func (c CachedUser) Identity() CurrentUser {
	return CurrentUser{ID: c.ID, UID: c.UID, Email: c.Email, FullName: c.FullName, Role: c.Role}
}
