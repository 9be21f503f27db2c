package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Signup creates an account and returns its first token pair.
func (c *SDKClient) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	return c.authCall(ctx, "/auth/signup", req, http.StatusCreated)
}

// Signin exchanges credentials for a token pair.
func (c *SDKClient) Signin(ctx context.Context, req SigninRequest) (*AuthResponse, error) {
	return c.authCall(ctx, "/auth/signin", req, http.StatusOK)
}

// Refresh rotates a refresh token. The old token stops working immediately.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	return c.authCall(ctx, "/auth/refresh", RefreshRequest{RefreshToken: refreshToken}, http.StatusOK)
}

// SigninSession signs in and wraps the tokens in a Session.
func (c *SDKClient) SigninSession(ctx context.Context, email, password string) (*Session, error) {
	res, err := c.Signin(ctx, SigninRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return newSession(c, res.AccessToken, res.RefreshToken), nil
}

// ForgotPassword asks for a reset link. It succeeds whether or not the email
// belongs to an account.
func (c *SDKClient) ForgotPassword(ctx context.Context, email string) (*MessageResponse, error) {
	return c.messageCall(ctx, "/auth/forgot-password", ForgotPasswordRequest{Email: email})
}

// ResetPassword sets a new password using a reset token.
func (c *SDKClient) ResetPassword(ctx context.Context, token, password string) (*MessageResponse, error) {
	return c.messageCall(ctx, "/auth/reset-password", ResetPasswordRequest{Token: token, Password: password})
}

// VerifyEmail consumes an email verification token.
func (c *SDKClient) VerifyEmail(ctx context.Context, token string) (*MessageResponse, error) {
	return c.messageCall(ctx, "/auth/verify-email", VerifyEmailRequest{Token: token})
}

// ResendVerification asks for a new verification email.
func (c *SDKClient) ResendVerification(ctx context.Context, email string) (*MessageResponse, error) {
	return c.messageCall(ctx, "/auth/resend-verification?email="+url.QueryEscape(email), nil)
}

func (c *SDKClient) authCall(ctx context.Context, path string, payload any, status int) (*AuthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, path, "", payload)
	if err != nil {
		return nil, err
	}

	var out AuthResponse
	if err := decodeJSON(resp, &out, status); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SDKClient) messageCall(ctx context.Context, path string, payload any) (*MessageResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, path, "", payload)
	if err != nil {
		return nil, err
	}

	var out MessageResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
