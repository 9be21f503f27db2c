package authsdk

import (
	"net/http"
	"strings"
	"time"
)

// DefaultAPIPrefix is where the service mounts its routes.
const DefaultAPIPrefix = "/api"

// SDKClient is a client for the gatekeeper accounts API.
// It provides access to public operations and can create authenticated Sessions.
type SDKClient struct {
	// BaseURL includes the API prefix, e.g. "https://accounts.example.com/api".
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new client. baseURL should include the API prefix.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewSessionFromTokens creates an authenticated session from existing tokens,
// e.g. ones restored from storage. The session refreshes the access token
// when it is about to expire.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string) *Session {
	return newSession(c, accessToken, refreshToken)
}
