package service

import (
	"errors"
	"fmt"
)

var (
	ErrEmailTaken          = errors.New("email_taken")
	ErrInvalidCredentials  = errors.New("invalid_credentials")
	ErrInvalidRefreshToken = errors.New("invalid_refresh_token")

	// ErrInvalidOrExpiredToken covers every rejected single-use flow token.
	ErrInvalidOrExpiredToken    = errors.New("invalid_or_expired_token")
	ErrInvalidVerificationToken = fmt.Errorf("invalid or expired verification token: %w", ErrInvalidOrExpiredToken)
	ErrInvalidResetToken        = fmt.Errorf("invalid or expired reset token: %w", ErrInvalidOrExpiredToken)

	ErrAlreadyVerified   = errors.New("already_verified")
	ErrUserNotFound      = errors.New("user_not_found")
	ErrSessionExpired    = errors.New("session_expired")
	ErrIncorrectPassword = errors.New("incorrect_password")

	// ErrForbidden is wrapped by every role rule violation.
	ErrForbidden                 = errors.New("forbidden")
	ErrCannotChangeOwnRole       = fmt.Errorf("cannot modify your own role: %w", ErrForbidden)
	ErrCannotModifySuperadmin    = fmt.Errorf("cannot modify superadmin users: %w", ErrForbidden)
	ErrOnlySuperadminGrantsSuper = fmt.Errorf("only superadmin can assign superadmin role: %w", ErrForbidden)
)

// RejectedError is returned when caller input is refused for a reason the
// caller should see, such as an upload of a disallowed type.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return e.Reason }

func rejected(format string, args ...any) error {
	return &RejectedError{Reason: fmt.Sprintf(format, args...)}
}
