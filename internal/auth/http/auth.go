package http

import (
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

// Confirmation messages. Forgot-password and resend-verification answer the
// same way whether or not the email belongs to an account.
const (
	msgResetRequested   = "If an account with that email exists, a password reset link has been sent"
	msgPasswordReset    = "Password reset successfully"
	msgEmailVerified    = "Email verified successfully"
	msgVerificationSent = "If an account with that email exists and is not verified, a verification email has been sent"
)

type AuthHandler struct {
	AuthService         *service.AuthService
	VerificationService *service.EmailVerificationService
	ResetService        *service.PasswordResetService
}

// HandleSignup registers a new account.
//
//	@Summary		Register a new user
//	@Description	Creates a regular, unverified account, sends a verification email and returns a token pair.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.SignupRequest	true	"Signup payload"
//	@Success		201		{object}	authsdk.AuthResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"EMAIL_TAKEN or VALIDATION_ERROR"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Router			/auth/signup [post].
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SignupRequest
	if !decodeValid(w, r, &req) {
		return
	}

	res, err := h.AuthService.Signup(r.Context(), service.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toAuthResponse(res))
}

// HandleSignin exchanges credentials for a token pair.
//
//	@Summary		Sign in
//	@Description	Unknown emails and wrong passwords produce the same response.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.SigninRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.AuthResponse
//	@Failure		401		{object}	authsdk.ErrorResponse	"INVALID_CREDENTIALS"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Router			/auth/signin [post].
func (h *AuthHandler) HandleSignin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SigninRequest
	if !decodeValid(w, r, &req) {
		return
	}

	res, err := h.AuthService.Signin(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(res))
}

// HandleLogout ends the caller's session.
//
//	@Summary		Sign out
//	@Description	Revokes the current refresh token. Outstanding access tokens stop working too.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	authsdk.ErrorResponse	"UNAUTHORIZED, USER_NOT_FOUND or SESSION_EXPIRED"
//	@Router			/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	user, ok := mustCurrentUser(w, r)
	if !ok {
		return
	}

	if err := h.AuthService.Logout(r.Context(), user.ID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleRefresh rotates a refresh token.
//
//	@Summary		Refresh tokens
//	@Description	Issues a new token pair. The presented refresh token stops working.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	authsdk.AuthResponse
//	@Failure		401		{object}	authsdk.ErrorResponse	"INVALID_REFRESH_TOKEN"
//	@Router			/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if !decodeValid(w, r, &req) {
		return
	}

	res, err := h.AuthService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(res))
}

// HandleForgotPassword sends a reset link if the account exists.
//
//	@Summary		Request a password reset
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.ForgotPasswordRequest	true	"Account email"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Router			/auth/forgot-password [post].
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ForgotPasswordRequest
	if !decodeValid(w, r, &req) {
		return
	}

	h.ResetService.Request(r.Context(), req.Email)
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: msgResetRequested})
}

// HandleResetPassword sets a new password with a reset token.
//
//	@Summary		Reset password
//	@Description	Consumes the reset token and ends any active session.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.ResetPasswordRequest	true	"Token and new password"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"INVALID_OR_EXPIRED_TOKEN"
//	@Router			/auth/reset-password [post].
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResetPasswordRequest
	if !decodeValid(w, r, &req) {
		return
	}

	if err := h.ResetService.Reset(r.Context(), req.Token, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: msgPasswordReset})
}

// HandleVerifyEmail consumes an email verification token.
//
//	@Summary		Verify email
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.VerifyEmailRequest	true	"Verification token"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"INVALID_OR_EXPIRED_TOKEN"
//	@Router			/auth/verify-email [post].
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyEmailRequest
	if !decodeValid(w, r, &req) {
		return
	}

	if err := h.VerificationService.Verify(r.Context(), req.Token); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: msgEmailVerified})
}

// HandleResendVerification issues a fresh verification token.
//
//	@Summary		Resend verification email
//	@Tags			Auth
//	@Produce		json
//	@Param			email	query		string	true	"Account email"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"ALREADY_VERIFIED"
//	@Router			/auth/resend-verification [post].
func (h *AuthHandler) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	req := authsdk.ForgotPasswordRequest{Email: r.URL.Query().Get("email")}
	if !valid(w, r, req) {
		return
	}

	if err := h.VerificationService.Resend(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: msgVerificationSent})
}

func toAuthResponse(res domain.AuthResult) authsdk.AuthResponse {
	return authsdk.AuthResponse{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		User:         toUserResponse(res.User),
	}
}

func toUserResponse(u domain.User) authsdk.UserResponse {
	return authsdk.UserResponse{
		UID:           u.UID,
		Email:         u.Email,
		FullName:      u.FullName,
		Role:          u.Role.String(),
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}
