package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

// ============================================================================
// Error Codes
// ============================================================================

const (
	ErrorCodeBadRequest         = httpx.CodeBadRequest
	ErrorCodeValidation         = httpx.CodeValidation
	ErrorCodeUnauthorized       = httpx.CodeUnauthorized
	ErrorCodeForbidden          = httpx.CodeForbidden
	ErrorCodeNotFound           = httpx.CodeNotFound
	ErrorCodeConflict           = httpx.CodeConflict
	ErrorCodeRateLimitExceeded  = httpx.CodeRateLimitExceeded
	ErrorCodeInternal           = httpx.CodeInternal
	ErrorCodeServiceUnavailable = httpx.CodeServiceUnavailable

	ErrorCodeEmailTaken            = "EMAIL_TAKEN"
	ErrorCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	ErrorCodeInvalidRefreshToken   = "INVALID_REFRESH_TOKEN"
	ErrorCodeInvalidOrExpiredToken = "INVALID_OR_EXPIRED_TOKEN"
	ErrorCodeAlreadyVerified       = "ALREADY_VERIFIED"
	ErrorCodeUserNotFound          = "USER_NOT_FOUND"
	ErrorCodeSessionExpired        = "SESSION_EXPIRED"
)

// Role names accepted by the API.
const (
	RoleSuperadmin = "superadmin"
	RoleAdmin      = "admin"
	RoleRegular    = "regular"
)

// ============================================================================
// APIError
// ============================================================================

// APIError is a decoded error envelope.
type APIError struct {
	// StatusCode is the HTTP status of the response.
	StatusCode int

	httpx.ErrorBody
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// IsCode reports whether err is an *APIError carrying code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// parseErrorResponse turns a non-2xx response into an *APIError. Bodies that
// are not an envelope still produce an error carrying the status.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var env ErrorResponse
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Code != "" {
		return &APIError{StatusCode: resp.StatusCode, ErrorBody: env.Error}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		ErrorBody: httpx.ErrorBody{
			Code:    codeForStatus(resp.StatusCode),
			Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		},
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return ErrorCodeBadRequest
	case http.StatusUnauthorized:
		return ErrorCodeUnauthorized
	case http.StatusForbidden:
		return ErrorCodeForbidden
	case http.StatusNotFound:
		return ErrorCodeNotFound
	case http.StatusTooManyRequests:
		return ErrorCodeRateLimitExceeded
	case http.StatusServiceUnavailable:
		return ErrorCodeServiceUnavailable
	default:
		return ErrorCodeInternal
	}
}
