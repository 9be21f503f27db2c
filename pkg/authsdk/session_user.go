package authsdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Me returns the caller's profile.
func (s *Session) Me(ctx context.Context) (*UserResponse, error) {
	return s.userCall(ctx, http.MethodGet, "/users/me", nil)
}

// UpdateMe changes the caller's profile.
func (s *Session) UpdateMe(ctx context.Context, req UpdateProfileRequest) (*UserResponse, error) {
	return s.userCall(ctx, http.MethodPatch, "/users/me", req)
}

// ChangePassword changes the caller's password. The session stays valid.
func (s *Session) ChangePassword(ctx context.Context, current, next string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPatch, "/users/me/password",
		ChangePasswordRequest{CurrentPassword: current, NewPassword: next})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// ListUsers pages through accounts. Requires an admin or superadmin session.
func (s *Session) ListUsers(ctx context.Context, page, limit int) (*PaginatedUsers, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}

	path := "/users"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := s.doAuthRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var out PaginatedUsers
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUser fetches one account by uid. Requires an admin or superadmin session.
func (s *Session) GetUser(ctx context.Context, uid string) (*UserResponse, error) {
	return s.userCall(ctx, http.MethodGet, "/users/"+url.PathEscape(uid), nil)
}

// UpdateUser changes another account. Requires an admin or superadmin session.
func (s *Session) UpdateUser(ctx context.Context, uid string, req AdminUpdateUserRequest) (*UserResponse, error) {
	return s.userCall(ctx, http.MethodPatch, "/users/"+url.PathEscape(uid), req)
}

// DeleteUser soft-deletes an account. Requires an admin or superadmin session.
func (s *Session) DeleteUser(ctx context.Context, uid string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/users/"+url.PathEscape(uid), nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

func (s *Session) userCall(ctx context.Context, method, path string, payload any) (*UserResponse, error) {
	resp, err := s.doAuthRequest(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}

	var out UserResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
