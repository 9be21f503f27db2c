package sqlstore

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store"
)

type usersRepo struct {
	q *queries
	d Dialect
}

var _ store.Users = (*usersRepo)(nil)

func (r *usersRepo) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	row, err := r.q.queryUser(ctx, getUserByID, id)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row), nil
}

func (r *usersRepo) GetUserByUID(ctx context.Context, uid string) (domain.User, error) {
	row, err := r.q.queryUser(ctx, getUserByUID, uid)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row), nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row, err := r.q.queryUser(ctx, getUserByEmail, domain.NormalizeEmail(email))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row), nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	role := u.Role
	if role == "" {
		role = domain.RoleRegular
	}

	row, err := r.q.queryUser(ctx, createUser,
		u.UID,
		domain.NormalizeEmail(u.Email),
		u.PasswordHash,
		u.FullName,
		string(role),
		u.EmailVerified,
	)
	if err != nil {
		return domain.User{}, r.d.mapWriteError(err)
	}
	return mapUser(row), nil
}

func (r *usersRepo) ListUsers(ctx context.Context, offset, limit int) ([]domain.User, error) {
	rows, err := r.q.queryUsers(ctx, listUsers, limit, offset)
	if err != nil {
		return nil, err
	}

	out := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapUser(row))
	}
	return out, nil
}

func (r *usersRepo) CountUsers(ctx context.Context) (int, error) {
	return r.q.count(ctx, countUsers)
}

func (r *usersRepo) UpdateUser(ctx context.Context, id int64, fullName *string, role *domain.Role) (domain.User, error) {
	var rolePtr *string
	if role != nil {
		s := string(*role)
		rolePtr = &s
	}

	row, err := r.q.queryUser(ctx, updateUser, mapOptionalString(fullName), mapOptionalString(rolePtr), id)
	if err != nil {
		return domain.User{}, r.d.mapWriteError(err)
	}
	return mapUser(row), nil
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return mapNotFound(r.q.exec(ctx, updatePasswordHash, hash, id))
}

func (r *usersRepo) SetRefreshTokenHash(ctx context.Context, id int64, hash *string) error {
	return mapNotFound(r.q.exec(ctx, setRefreshTokenHash, mapOptionalString(hash), id))
}

func (r *usersRepo) SwapRefreshTokenHash(ctx context.Context, id int64, oldHash, newHash string) error {
	return mapNotFound(r.q.exec(ctx, swapRefreshTokenHash, newHash, id, oldHash))
}

func (r *usersRepo) SetEmailVerificationToken(ctx context.Context, id int64, token string, expires time.Time) error {
	return mapNotFound(r.q.exec(ctx, setEmailVerificationToken, token, expires.UTC(), id))
}

func (r *usersRepo) ConsumeEmailVerificationToken(ctx context.Context, token string, now time.Time) (domain.User, error) {
	row, err := r.q.queryUser(ctx, consumeEmailVerificationToken, true, token, now.UTC())
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row), nil
}

func (r *usersRepo) SetPasswordResetToken(ctx context.Context, id int64, token string, expires time.Time) error {
	return mapNotFound(r.q.exec(ctx, setPasswordResetToken, token, expires.UTC(), id))
}

func (r *usersRepo) ConsumePasswordResetToken(ctx context.Context, token, newHash string, now time.Time) (domain.User, error) {
	row, err := r.q.queryUser(ctx, consumePasswordResetToken, newHash, token, now.UTC())
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row), nil
}

func (r *usersRepo) SoftDeleteUser(ctx context.Context, id int64, at time.Time) error {
	return mapNotFound(r.q.exec(ctx, softDeleteUser, at.UTC(), id))
}
