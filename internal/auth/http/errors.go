package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

// serviceErrors is matched in order with errors.Is, so wrapped variants come
// before the sentinel they wrap.
var serviceErrors = []errorMapping{
	{service.ErrEmailTaken, http.StatusBadRequest, authsdk.ErrorCodeEmailTaken, "Email already registered"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials, "Invalid credentials"},
	{service.ErrInvalidRefreshToken, http.StatusUnauthorized, authsdk.ErrorCodeInvalidRefreshToken, "Invalid refresh token"},
	{service.ErrInvalidVerificationToken, http.StatusBadRequest, authsdk.ErrorCodeInvalidOrExpiredToken, "Invalid or expired verification token"},
	{service.ErrInvalidResetToken, http.StatusBadRequest, authsdk.ErrorCodeInvalidOrExpiredToken, "Invalid or expired reset token"},
	{service.ErrInvalidOrExpiredToken, http.StatusBadRequest, authsdk.ErrorCodeInvalidOrExpiredToken, "Invalid or expired token"},
	{service.ErrAlreadyVerified, http.StatusBadRequest, authsdk.ErrorCodeAlreadyVerified, "Email already verified"},
	{service.ErrUserNotFound, http.StatusNotFound, authsdk.ErrorCodeNotFound, "User not found"},
	{service.ErrSessionExpired, http.StatusUnauthorized, authsdk.ErrorCodeSessionExpired, "Session expired"},
	{service.ErrCannotChangeOwnRole, http.StatusForbidden, authsdk.ErrorCodeForbidden, "Cannot modify your own role"},
	{service.ErrCannotModifySuperadmin, http.StatusForbidden, authsdk.ErrorCodeForbidden, "Cannot modify superadmin users"},
	{service.ErrOnlySuperadminGrantsSuper, http.StatusForbidden, authsdk.ErrorCodeForbidden, "Only superadmin can assign superadmin role"},
	{service.ErrForbidden, http.StatusForbidden, authsdk.ErrorCodeForbidden, "Insufficient permissions"},
	{service.ErrIncorrectPassword, http.StatusBadRequest, authsdk.ErrorCodeBadRequest, "Current password is incorrect"},
	{service.ErrObjectNotFound, http.StatusNotFound, authsdk.ErrorCodeNotFound, "File not found"},
}

// writeServiceError maps a service failure onto the error envelope. Anything
// unrecognised is logged and reported as an internal error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			httpx.WriteError(w, r, m.status, m.code, m.message)
			return
		}
	}

	var rej *service.RejectedError
	if errors.As(err, &rej) {
		httpx.WriteError(w, r, http.StatusBadRequest, authsdk.ErrorCodeBadRequest, rej.Reason)
		return
	}

	httpx.WriteInternalError(w, r, err)
}

type validatable interface {
	Validate() error
}

// decodeValid reads the JSON body into dst and validates it, writing the
// error response itself when either step fails.
func decodeValid(w http.ResponseWriter, r *http.Request, dst validatable) bool {
	if err := httpx.DecodeJSON(w, r, dst); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, authsdk.ErrorCodeBadRequest, "Malformed JSON body")
		return false
	}
	return valid(w, r, dst)
}

func valid(w http.ResponseWriter, r *http.Request, v validatable) bool {
	err := v.Validate()
	if err == nil {
		return true
	}

	details := authsdk.FieldErrors(err)
	if details == nil {
		httpx.WriteError(w, r, http.StatusBadRequest, authsdk.ErrorCodeValidation, err.Error())
		return false
	}
	httpx.WriteError(w, r, http.StatusBadRequest, authsdk.ErrorCodeValidation, "Validation failed", details...)
	return false
}
