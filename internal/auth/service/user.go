package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/cache"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
)

// UserService manages profiles and, for admins, other accounts.
type UserService struct {
	Store store.Store
	Cache cache.UserCache
	Clock Clock
}

// UserPage is one page of the user listing.
type UserPage struct {
	Users []domain.User
	Meta  domain.PageMeta
}

// List returns live users, newest first.
func (s *UserService) List(ctx context.Context, page, limit int) (UserPage, error) {
	p := domain.NewPage(page, limit)

	users, err := s.Store.Users().ListUsers(ctx, p.Offset(), p.Limit)
	if err != nil {
		return UserPage{}, err
	}
	total, err := s.Store.Users().CountUsers(ctx)
	if err != nil {
		return UserPage{}, err
	}

	return UserPage{Users: users, Meta: p.Meta(total)}, nil
}

// GetByUID returns the live user with the public id uid.
func (s *UserService) GetByUID(ctx context.Context, uid string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByUID(ctx, uid)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return user, err
}

// UpdateProfile lets a user change their own display name.
func (s *UserService) UpdateProfile(ctx context.Context, uid string, fullName *string) (domain.User, error) {
	user, err := s.GetByUID(ctx, uid)
	if err != nil {
		return domain.User{}, err
	}
	return s.update(ctx, user.ID, fullName, nil)
}

// AdminUpdate changes another account on behalf of actor.
func (s *UserService) AdminUpdate(ctx context.Context, actor domain.CurrentUser, uid string, fullName *string, role *domain.Role) (domain.User, error) {
	target, err := s.GetByUID(ctx, uid)
	if err != nil {
		return domain.User{}, err
	}

	if err := CheckRoleChange(actor, target, role); err != nil {
		return domain.User{}, err
	}
	return s.update(ctx, target.ID, fullName, role)
}

// CheckRoleChange applies the rules for one account modifying another. The
// actor may not touch an account that outranks them or grant a role above
// their own.
func CheckRoleChange(actor domain.CurrentUser, target domain.User, role *domain.Role) error {
	switch {
	case role != nil && target.UID == actor.UID:
		return ErrCannotChangeOwnRole
	case !actor.Role.AtLeast(target.Role):
		return ErrCannotModifySuperadmin
	case role != nil && !actor.Role.AtLeast(*role):
		return ErrOnlySuperadminGrantsSuper
	}
	return nil
}

func (s *UserService) update(ctx context.Context, id int64, fullName *string, role *domain.Role) (domain.User, error) {
	updated, err := s.Store.Users().UpdateUser(ctx, id, fullName, role)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	invalidate(ctx, s.Cache, id)
	return updated, nil
}

// ChangePassword replaces the password after checking the current one. The
// session stays valid.
func (s *UserService) ChangePassword(ctx context.Context, uid, current, next string) error {
	user, err := s.GetByUID(ctx, uid)
	if err != nil {
		return err
	}

	if !cryptox.VerifyPassword(current, user.PasswordHash) {
		return ErrIncorrectPassword
	}

	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.Store.Users().UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	invalidate(ctx, s.Cache, user.ID)
	return nil
}

// Delete soft-deletes the account on behalf of actor. Its email becomes free
// for a new signup.
func (s *UserService) Delete(ctx context.Context, actor domain.CurrentUser, uid string) error {
	user, err := s.GetByUID(ctx, uid)
	if err != nil {
		return err
	}

	if err := CheckRoleChange(actor, user, nil); err != nil {
		return err
	}

	if err := s.Store.Users().SoftDeleteUser(ctx, user.ID, s.Clock.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	invalidate(ctx, s.Cache, user.ID)
	return nil
}
