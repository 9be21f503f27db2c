package authsdk

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Input limits shared by the server and the client.
const (
	PasswordMinLength = 8
	PasswordMaxLength = 72
	FullNameMinLength = 2
	FullNameMaxLength = 100
	EmailMaxLength    = 254
)

var (
	emailRules    = []validation.Rule{validation.Required, validation.Length(3, EmailMaxLength), is.Email}
	passwordRules = []validation.Rule{validation.Required, validation.Length(PasswordMinLength, PasswordMaxLength)}
	fullNameRules = []validation.Rule{validation.Required, validation.Length(FullNameMinLength, FullNameMaxLength)}
)

// Validate checks the signup payload.
func (r SignupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, emailRules...),
		validation.Field(&r.Password, passwordRules...),
		validation.Field(&r.FullName, fullNameRules...),
	)
}

// Validate checks the signin payload. Password length is not enforced so a
// short guess is reported as bad credentials rather than a validation error.
func (r SigninRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, emailRules...),
		validation.Field(&r.Password, validation.Required, validation.Length(1, PasswordMaxLength)),
	)
}

// Validate checks the refresh payload.
func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// Validate checks the forgot-password payload.
func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, emailRules...),
	)
}

// Validate checks the reset-password payload.
func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, passwordRules...),
	)
}

// Validate checks the verify-email payload.
func (r VerifyEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

// Validate checks the profile update payload.
func (r UpdateProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.NilOrNotEmpty, validation.Length(FullNameMinLength, FullNameMaxLength)),
	)
}

// Validate checks the admin update payload.
func (r AdminUpdateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.NilOrNotEmpty, validation.Length(FullNameMinLength, FullNameMaxLength)),
		validation.Field(&r.Role, validation.NilOrNotEmpty, validation.In(RoleSuperadmin, RoleAdmin, RoleRegular)),
	)
}

// Validate checks the change-password payload.
func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, passwordRules...),
	)
}

// Validate checks the presigned upload payload.
func (r PresignedUploadRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Filename, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.ContentType, validation.Required),
		validation.Field(&r.ExpiresIn, validation.Min(0)),
	)
}

// Validate checks the presigned download payload.
func (r PresignedDownloadRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Key, validation.Required),
		validation.Field(&r.ExpiresIn, validation.Min(0)),
	)
}

// FieldErrors flattens an ozzo validation error into envelope details, sorted
// by field name. Non-validation errors yield nil.
func FieldErrors(err error) []FieldError {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make([]FieldError, 0, len(verrs))
	for field, ferr := range verrs {
		if ferr == nil {
			continue
		}
		out = append(out, FieldError{Field: field, Message: strings.TrimSpace(ferr.Error())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}
