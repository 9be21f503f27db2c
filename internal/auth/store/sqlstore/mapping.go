package sqlstore

import (
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store"
)

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func (d Dialect) mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if d.IsUniqueViolation != nil && d.IsUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return mapNotFound(err)
}

func mapNullStringPtr(ns sql.NullString) *string {
	if ns.Valid {
		val := ns.String
		return &val
	}
	return nil
}

func mapOptionalString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *s, Valid: true}
}

func mapNullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		val := nt.Time.UTC()
		return &val
	}
	return nil
}

func mapUser(row userRow) domain.User {
	return domain.User{
		ID:                       row.ID,
		UID:                      row.UID,
		Email:                    row.Email,
		PasswordHash:             row.PasswordHash,
		FullName:                 row.FullName,
		Role:                     domain.Role(row.Role),
		EmailVerified:            row.EmailVerified,
		RefreshTokenHash:         mapNullStringPtr(row.RefreshTokenHash),
		EmailVerificationToken:   mapNullStringPtr(row.EmailVerificationToken),
		EmailVerificationExpires: mapNullTimePtr(row.EmailVerificationExpires),
		PasswordResetToken:       mapNullStringPtr(row.PasswordResetToken),
		PasswordResetExpires:     mapNullTimePtr(row.PasswordResetExpires),
		DeletedAt:                mapNullTimePtr(row.DeletedAt),
		CreatedAt:                row.CreatedAt.UTC(),
		UpdatedAt:                row.UpdatedAt.UTC(),
	}
}
