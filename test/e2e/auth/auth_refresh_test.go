package auth_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
)

// TestSignupSigninRefresh tests the complete flow:
// 1. Sign up a new account
// 2. Sign in with the same credentials
// 3. Refresh the session
// 4. Verify token rotation (the old refresh token stops working)
func TestSignupSigninRefresh(t *testing.T) {
	baseURL, cleanup := setupAuthContainer(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)

	signup := signupUser(t, client, "Alice@Example.com", "Alice Example")
	require.Equal(t, "alice@example.com", signup.User.Email, "Email should be normalized")
	require.Equal(t, authsdk.RoleRegular, signup.User.Role)
	require.False(t, signup.User.EmailVerified)

	t.Logf("Signup successful, user %s", signup.User.UID)

	signin, err := client.Signin(t.Context(), authsdk.SigninRequest{
		Email:    "alice@example.com",
		Password: userPassword,
	})
	require.NoError(t, err)
	assertAuthResponse(t, signin)
	require.Equal(t, signup.User.UID, signin.User.UID)

	refreshed, err := client.Refresh(t.Context(), signin.RefreshToken)
	require.NoError(t, err)
	assertAuthResponse(t, refreshed)
	require.NotEqual(t, signin.RefreshToken, refreshed.RefreshToken, "Refresh token should be rotated")

	// Only the most recently issued refresh token is accepted.
	_, err = client.Refresh(t.Context(), signin.RefreshToken)
	assertCode(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidRefreshToken)

	t.Logf("Refresh successful, tokens rotated")
}

// TestLogoutEndsSession verifies that logout revokes both tokens.
func TestLogoutEndsSession(t *testing.T) {
	baseURL, cleanup := setupAuthContainer(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)

	resp := signupUser(t, client, "bob@example.com", "Bob Example")
	session := client.NewSessionFromTokens(resp.AccessToken, resp.RefreshToken)

	me, err := session.Me(t.Context())
	require.NoError(t, err)
	require.Equal(t, resp.User.UID, me.UID)

	require.NoError(t, session.Logout(t.Context()))

	stale := client.NewSessionFromTokens(resp.AccessToken, "")
	_, err = stale.Me(t.Context())
	assertCode(t, err, http.StatusUnauthorized, authsdk.ErrorCodeSessionExpired)

	_, err = client.Refresh(t.Context(), resp.RefreshToken)
	assertCode(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidRefreshToken)
}
