package authsdk_test

import (
	"strings"
	"testing"

	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestSignupRequest_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		req    authsdk.SignupRequest
		fields []string
	}{
		{"valid", authsdk.SignupRequest{Email: "ada@example.com", Password: "password123", FullName: "Ada"}, nil},
		{"bad email", authsdk.SignupRequest{Email: "not-an-email", Password: "password123", FullName: "Ada"}, []string{"email"}},
		{"short password", authsdk.SignupRequest{Email: "ada@example.com", Password: "short", FullName: "Ada"}, []string{"password"}},
		{"long password", authsdk.SignupRequest{Email: "ada@example.com", Password: strings.Repeat("p", 73), FullName: "Ada"}, []string{"password"}},
		{"short name", authsdk.SignupRequest{Email: "ada@example.com", Password: "password123", FullName: "A"}, []string{"fullName"}},
		{"everything missing", authsdk.SignupRequest{}, []string{"email", "fullName", "password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.req.Validate()
			if tt.fields == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)

			var got []string
			for _, fe := range authsdk.FieldErrors(err) {
				require.NotEmpty(t, fe.Message)
				got = append(got, fe.Field)
			}
			require.Equal(t, tt.fields, got)
		})
	}
}

func TestAdminUpdateUserRequest_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, authsdk.AdminUpdateUserRequest{}.Validate())
	require.NoError(t, authsdk.AdminUpdateUserRequest{Role: ptr(authsdk.RoleAdmin)}.Validate())
	require.Error(t, authsdk.AdminUpdateUserRequest{Role: ptr("owner")}.Validate())
	require.Error(t, authsdk.AdminUpdateUserRequest{FullName: ptr("")}.Validate())
}

func TestFieldErrors_NonValidation(t *testing.T) {
	t.Parallel()

	require.Nil(t, authsdk.FieldErrors(nil))
}
