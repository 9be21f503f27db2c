/*
Package authsdk is the wire contract and Go client for the gatekeeper
accounts API.

# Overview

The package is organised around two types:

  - SDKClient: public operations (signup, signin, refresh, password reset,
    email verification, health) and session creation
  - Session: bearer-authenticated operations with automatic token refresh

	client := authsdk.NewSDKClient("https://accounts.example.com/api")

	session, err := client.SigninSession(ctx, "ada@example.com", "correct horse")
	if err != nil {
		return err
	}

	me, err := session.Me(ctx)

# Automatic Token Refresh

Every Session method obtains its access token through getValidToken, which
renews it with the refresh token 30 seconds before the exp claim. Refresh
rotates both tokens; the previous refresh token is rejected from then on, so
a Session must not be copied between processes.

# Errors

Failed calls return *APIError, which carries the HTTP status and the decoded
error envelope:

	if authsdk.IsCode(err, authsdk.ErrorCodeInvalidCredentials) {
		// prompt again
	}

# Validation

Request types implement Validate with the same rules the server applies, so
callers can reject bad input before a round trip. FieldErrors converts the
result into envelope details.

# Thread Safety

Sessions are safe for concurrent use.
*/
package authsdk
