package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

type UsersHandler struct {
	UserService *service.UserService
}

// pageQuery holds the raw listing parameters so malformed numbers can be
// reported as field errors.
type pageQuery struct {
	Page  string `json:"page"`
	Limit string `json:"limit"`
}

func (q pageQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Page, validation.By(intInRange(1, 0))),
		validation.Field(&q.Limit, validation.By(intInRange(1, domain.MaxLimit))),
	)
}

// intInRange accepts an empty string or an integer in [lo, hi]. A zero hi
// means no upper bound.
func intInRange(lo, hi int) validation.RuleFunc {
	return func(v any) error {
		s, _ := v.(string)
		if s == "" {
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return errors.New("must be an integer")
		}
		if n < lo {
			return fmt.Errorf("must be no less than %d", lo)
		}
		if hi > 0 && n > hi {
			return fmt.Errorf("must be no greater than %d", hi)
		}
		return nil
	}
}

func (q pageQuery) ints() (page, limit int) {
	page, _ = strconv.Atoi(q.Page)
	limit, _ = strconv.Atoi(q.Limit)
	return page, limit
}

// HandleList returns one page of live users.
//
//	@Summary		List users
//	@Description	Admin only. Newest accounts first.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Param			page	query		int	false	"Page number (default 1)"
//	@Param			limit	query		int	false	"Page size, 1 to 100 (default 10)"
//	@Success		200		{object}	authsdk.PaginatedUsers
//	@Failure		400		{object}	authsdk.ErrorResponse	"VALIDATION_ERROR"
//	@Failure		403		{object}	authsdk.ErrorResponse	"FORBIDDEN"
//	@Router			/users [get].
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := pageQuery{Page: r.URL.Query().Get("page"), Limit: r.URL.Query().Get("limit")}
	if !valid(w, r, q) {
		return
	}

	page, limit := q.ints()
	res, err := h.UserService.List(r.Context(), page, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := authsdk.PaginatedUsers{
		Data: make([]authsdk.UserResponse, 0, len(res.Users)),
		Meta: authsdk.PaginationMeta{
			Total:           res.Meta.Total,
			Page:            res.Meta.Page,
			Limit:           res.Meta.Limit,
			TotalPages:      res.Meta.TotalPages,
			HasNextPage:     res.Meta.HasNextPage,
			HasPreviousPage: res.Meta.HasPreviousPage,
		},
	}
	for _, u := range res.Users {
		out.Data = append(out.Data, toUserResponse(u))
	}

	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleGetMe returns the caller's profile.
//
//	@Summary		Get current user
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserResponse
//	@Failure		401	{object}	authsdk.ErrorResponse
//	@Router			/users/me [get].
func (h *UsersHandler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	me, ok := mustCurrentUser(w, r)
	if !ok {
		return
	}

	user, err := h.UserService.GetByUID(r.Context(), me.UID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleUpdateMe changes the caller's profile.
//
//	@Summary		Update current user
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.UpdateProfileRequest	true	"Profile fields"
//	@Success		200		{object}	authsdk.UserResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"VALIDATION_ERROR"
//	@Router			/users/me [patch].
func (h *UsersHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	me, ok := mustCurrentUser(w, r)
	if !ok {
		return
	}

	var req authsdk.UpdateProfileRequest
	if !decodeValid(w, r, &req) {
		return
	}

	user, err := h.UserService.UpdateProfile(r.Context(), me.UID, req.FullName)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleChangePassword replaces the caller's password.
//
//	@Summary		Change password
//	@Description	Requires the current password. The session stays active.
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Param			body	body	authsdk.ChangePasswordRequest	true	"Current and new password"
//	@Success		204
//	@Failure		400	{object}	authsdk.ErrorResponse	"BAD_REQUEST when the current password is wrong"
//	@Router			/users/me/password [patch].
func (h *UsersHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	me, ok := mustCurrentUser(w, r)
	if !ok {
		return
	}

	var req authsdk.ChangePasswordRequest
	if !decodeValid(w, r, &req) {
		return
	}

	if err := h.UserService.ChangePassword(r.Context(), me.UID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleGet returns any live user.
//
//	@Summary		Get user
//	@Description	Admin only.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Param			uid	path		string	true	"User UID"
//	@Success		200	{object}	authsdk.UserResponse
//	@Failure		404	{object}	authsdk.ErrorResponse	"NOT_FOUND"
//	@Router			/users/{uid} [get].
func (h *UsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.UserService.GetByUID(r.Context(), r.PathValue("uid"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleAdminUpdate changes another user's name or role.
//
//	@Summary		Update user
//	@Description	Admin only. Nobody changes their own role, only superadmins touch superadmins or grant the role.
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			uid		path		string							true	"User UID"
//	@Param			body	body		authsdk.AdminUpdateUserRequest	true	"Fields to change"
//	@Success		200		{object}	authsdk.UserResponse
//	@Failure		403		{object}	authsdk.ErrorResponse	"FORBIDDEN"
//	@Failure		404		{object}	authsdk.ErrorResponse	"NOT_FOUND"
//	@Router			/users/{uid} [patch].
func (h *UsersHandler) HandleAdminUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustCurrentUser(w, r)
	if !ok {
		return
	}

	var req authsdk.AdminUpdateUserRequest
	if !decodeValid(w, r, &req) {
		return
	}

	var role *domain.Role
	if req.Role != nil {
		rl := domain.Role(*req.Role)
		role = &rl
	}

	user, err := h.UserService.AdminUpdate(r.Context(), actor, r.PathValue("uid"), req.FullName, role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleDelete soft-deletes a user.
//
//	@Summary		Delete user
//	@Description	Admin only. Only superadmins delete superadmins. The email becomes available for a new signup.
//	@Tags			Users
//	@Security		BearerAuth
//	@Param			uid	path	string	true	"User UID"
//	@Success		204
//	@Failure		403	{object}	authsdk.ErrorResponse	"FORBIDDEN"
//	@Failure		404	{object}	authsdk.ErrorResponse	"NOT_FOUND"
//	@Router			/users/{uid} [delete].
func (h *UsersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustCurrentUser(w, r)
	if !ok {
		return
	}

	if err := h.UserService.Delete(r.Context(), actor, r.PathValue("uid")); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
