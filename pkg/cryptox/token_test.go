package cryptox

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateHexToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		size    int
		wantLen int
	}{
		{"128-bit token", 16, 32},
		{"256-bit token", TokenSize256, 64},
		{"custom size", 24, 48},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			token, err := GenerateHexToken(tt.size)
			require.NoError(t, err)
			require.Len(t, token, tt.wantLen)

			_, err = hex.DecodeString(token)
			require.NoError(t, err, "token should be hex")

			token2, err := GenerateHexToken(tt.size)
			require.NoError(t, err)
			require.NotEqual(t, token, token2, "tokens should be unique")
		})
	}
}

func TestGenerateHexToken_InvalidSize(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, -1} {
		token, err := GenerateHexToken(size)
		require.Error(t, err)
		require.Empty(t, token)
	}
}

func TestFingerprintToken(t *testing.T) {
	t.Parallel()

	fp1a := FingerprintToken("test-token-1")
	fp1b := FingerprintToken("test-token-1")
	fp2 := FingerprintToken("test-token-2")

	require.Equal(t, fp1a, fp1b, "fingerprint should be deterministic")
	require.NotEqual(t, fp1a, fp2)
	require.Len(t, fp1a, 43, "SHA-256 base64url should be 43 chars")
}

func TestHashToken(t *testing.T) {
	t.Parallel()

	// Longer than bcrypt accepts directly, like any signed JWT.
	jwtLike := "eyJhbGciOiJIUzI1NiJ9." + strings.Repeat("x", 200) + ".sig"

	hash, err := HashToken(jwtLike)
	require.NoError(t, err)
	require.True(t, VerifyToken(jwtLike, hash))
	require.False(t, VerifyToken(jwtLike+"x", hash))
	require.False(t, VerifyToken(jwtLike, "garbage"))

	// Tokens sharing a 72 byte prefix must not collide.
	other := jwtLike[:100] + "different-tail"
	require.False(t, VerifyToken(other, hash))
}
