package authsdk

import (
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

// ============================================================================
// Error Envelope
// ============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse = httpx.ErrorEnvelope

// FieldError describes one invalid input field inside ErrorResponse.
type FieldError = httpx.FieldError

// ============================================================================
// Auth Types
// ============================================================================

// SignupRequest is the body for POST /auth/signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// SigninRequest is the body for POST /auth/signin.
type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the body for POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ForgotPasswordRequest is the body for POST /auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the body for POST /auth/reset-password.
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// VerifyEmailRequest is the body for POST /auth/verify-email.
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// AuthResponse is returned by signup, signin and refresh.
type AuthResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         UserResponse `json:"user"`
}

// MessageResponse carries a human readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// ============================================================================
// User Types
// ============================================================================

// UserResponse is the public projection of an account.
type UserResponse struct {
	UID           string    `json:"uid"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

// UpdateProfileRequest is the body for PATCH /users/me.
type UpdateProfileRequest struct {
	FullName *string `json:"fullName,omitempty"`
}

// AdminUpdateUserRequest is the body for PATCH /users/{uid}.
type AdminUpdateUserRequest struct {
	FullName *string `json:"fullName,omitempty"`
	Role     *string `json:"role,omitempty"`
}

// ChangePasswordRequest is the body for PATCH /users/me/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// PaginationMeta describes one page of a listing.
type PaginationMeta struct {
	Total           int  `json:"total"`
	Page            int  `json:"page"`
	Limit           int  `json:"limit"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// PaginatedUsers is returned by GET /users.
type PaginatedUsers struct {
	Data []UserResponse `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

// ============================================================================
// Upload Types
// ============================================================================

// UploadResponse is returned by POST /upload.
type UploadResponse struct {
	Key      string `json:"key"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

// PresignedUploadRequest is the body for POST /upload/presigned/upload.
type PresignedUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Folder      string `json:"folder,omitempty"`
	ExpiresIn   int    `json:"expiresIn,omitempty"`
}

// PresignedDownloadRequest is the body for POST /upload/presigned/download.
type PresignedDownloadRequest struct {
	Key       string `json:"key"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

// PresignedURLResponse carries a time-limited storage URL.
type PresignedURLResponse struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresIn int       `json:"expiresIn"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Uptime  string            `json:"uptime,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}
