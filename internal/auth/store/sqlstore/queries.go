package sqlstore

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const userColumns = `id, uid, email, password_hash, full_name, role, email_verified,
	refresh_token_hash, email_verification_token, email_verification_expires,
	password_reset_token, password_reset_expires, deleted_at, created_at, updated_at`

const (
	getUserByID = `SELECT ` + userColumns + ` FROM users
WHERE id = ? AND deleted_at IS NULL`

	getUserByUID = `SELECT ` + userColumns + ` FROM users
WHERE uid = ? AND deleted_at IS NULL`

	getUserByEmail = `SELECT ` + userColumns + ` FROM users
WHERE email = ? AND deleted_at IS NULL`

	createUser = `INSERT INTO users (uid, email, password_hash, full_name, role, email_verified)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING ` + userColumns

	listUsers = `SELECT ` + userColumns + ` FROM users
WHERE deleted_at IS NULL
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`

	countUsers = `SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`

	updateUser = `UPDATE users
SET full_name = COALESCE(CAST(? AS TEXT), full_name),
    role = COALESCE(CAST(? AS TEXT), role),
    updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND deleted_at IS NULL
RETURNING ` + userColumns

	updatePasswordHash = `UPDATE users
SET password_hash = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND deleted_at IS NULL`

	setRefreshTokenHash = `UPDATE users
SET refresh_token_hash = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND deleted_at IS NULL`

	swapRefreshTokenHash = `UPDATE users
SET refresh_token_hash = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND refresh_token_hash = ? AND deleted_at IS NULL`

	setEmailVerificationToken = `UPDATE users
SET email_verification_token = ?, email_verification_expires = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND deleted_at IS NULL`

	consumeEmailVerificationToken = `UPDATE users
SET email_verified = ?,
    email_verification_token = NULL,
    email_verification_expires = NULL,
    updated_at = CURRENT_TIMESTAMP
WHERE email_verification_token = ?
  AND email_verification_expires > ?
  AND deleted_at IS NULL
RETURNING ` + userColumns

	setPasswordResetToken = `UPDATE users
SET password_reset_token = ?, password_reset_expires = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND deleted_at IS NULL`

	consumePasswordResetToken = `UPDATE users
SET password_hash = ?,
    password_reset_token = NULL,
    password_reset_expires = NULL,
    refresh_token_hash = NULL,
    updated_at = CURRENT_TIMESTAMP
WHERE password_reset_token = ?
  AND password_reset_expires > ?
  AND deleted_at IS NULL
RETURNING ` + userColumns

	softDeleteUser = `UPDATE users
SET deleted_at = ?, refresh_token_hash = NULL, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND deleted_at IS NULL`
)

// queries runs the statements above against db, rewritten for dialect d.
type queries struct {
	db DBTX
	d  Dialect
}

type userRow struct {
	ID                       int64
	UID                      string
	Email                    string
	PasswordHash             string
	FullName                 string
	Role                     string
	EmailVerified            bool
	RefreshTokenHash         sql.NullString
	EmailVerificationToken   sql.NullString
	EmailVerificationExpires sql.NullTime
	PasswordResetToken       sql.NullString
	PasswordResetExpires     sql.NullTime
	DeletedAt                sql.NullTime
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (userRow, error) {
	var u userRow
	err := s.Scan(
		&u.ID,
		&u.UID,
		&u.Email,
		&u.PasswordHash,
		&u.FullName,
		&u.Role,
		&u.EmailVerified,
		&u.RefreshTokenHash,
		&u.EmailVerificationToken,
		&u.EmailVerificationExpires,
		&u.PasswordResetToken,
		&u.PasswordResetExpires,
		&u.DeletedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func (q *queries) queryUser(ctx context.Context, stmt string, args ...any) (userRow, error) {
	return scanUser(q.db.QueryRowContext(ctx, q.d.rebind(stmt), args...))
}

func (q *queries) queryUsers(ctx context.Context, stmt string, args ...any) ([]userRow, error) {
	rows, err := q.db.QueryContext(ctx, q.d.rebind(stmt), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []userRow
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// exec runs stmt and returns sql.ErrNoRows when it touched nothing.
func (q *queries) exec(ctx context.Context, stmt string, args ...any) error {
	res, err := q.db.ExecContext(ctx, q.d.rebind(stmt), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (q *queries) count(ctx context.Context, stmt string, args ...any) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, q.d.rebind(stmt), args...).Scan(&n)
	return n, err
}
