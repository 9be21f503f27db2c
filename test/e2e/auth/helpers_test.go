package auth_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
)

/*
 * Common constants and helper functions for end-to-end tests.
 * This includes container setup, account operations, and assertions.
 */

const (
	testImageName = "gatekeeper-test:latest"

	superadminEmail    = "root@example.com"
	superadminPassword = "Superadmin123!"
	superadminName     = "Root Admin"

	userPassword = "Password123!"
)

// TestMain manages the test lifecycle, builds the Docker image once before
// all tests and cleans it up after all tests complete.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building gatekeeper Docker image...")

	// Build the Docker image once before all tests
	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	// Run all tests
	exitCode := m.Run()

	// Clean up the Docker image after all tests complete
	fmt.Fprintf(os.Stdout, "Cleaning up gatekeeper Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

// buildDockerImage builds the test Docker image if it doesn't exist.
func buildDockerImage() error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/auth/Dockerfile",
		"../../../")
	cmd.Dir = "."
	cmd.Stdout = os.Stdout
	cmd.Stderr = nil

	return cmd.Run()
}

// cleanupDockerImage removes the test Docker image.
func cleanupDockerImage() {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // Ignore errors - image might not exist
}

// baseEnv is the container environment shared by every test.
func baseEnv() map[string]string {
	return map[string]string{
		"ENV":                  "test",
		"PORT":                 "4000",
		"DATABASE_URL":         "file:/tmp/auth.db",
		"JWT_SECRET":           "e2e-secret-that-is-at-least-32-bytes-long",
		"MAIL_DRIVER":          "log",
		"STORAGE_DRIVER":       "memory",
		"SUPERADMIN_EMAIL":     superadminEmail,
		"SUPERADMIN_PASSWORD":  superadminPassword,
		"SUPERADMIN_FULL_NAME": superadminName,
		"LOG_LEVEL":            "info",
		"LOG_FORMAT":           "json",
	}
}

// relaxedEnv raises the per-route limits so tests making many rapid requests
// are not throttled.
func relaxedEnv() map[string]string {
	env := baseEnv()
	for _, profile := range []string{"SIGNUP", "SIGNIN", "REFRESH", "DEFAULT"} {
		env["RATELIMIT_"+profile+"_REQUESTS"] = "1000"
		env["RATELIMIT_"+profile+"_BURST"] = "1000"
	}
	return env
}

// setupAuthContainer starts the service with relaxed rate limits and returns
// the base URL including the API prefix.
func setupAuthContainer(t *testing.T) (string, func()) {
	t.Helper()
	return startContainer(t, relaxedEnv())
}

// setupAuthContainerWithDefaultRateLimits starts the service with the
// production limits. Only rate limit tests should use it.
func setupAuthContainerWithDefaultRateLimits(t *testing.T) (string, func()) {
	t.Helper()
	return startContainer(t, baseEnv())
}

func startContainer(t *testing.T, env map[string]string) (string, func()) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"4000/tcp"},
		Env:          env,
		WaitingFor: wait.ForHTTP(authsdk.DefaultAPIPrefix + "/health/live").
			WithPort("4000/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	// Get the mapped port
	mappedPort, err := container.MappedPort(ctx, "4000")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	baseURL := fmt.Sprintf("http://%s:%s%s", host, mappedPort.Port(), authsdk.DefaultAPIPrefix)

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return baseURL, cleanup
}

// signupUser registers a fresh account and returns its tokens.
func signupUser(t *testing.T, client *authsdk.SDKClient, email, name string) *authsdk.AuthResponse {
	t.Helper()

	resp, err := client.Signup(t.Context(), authsdk.SignupRequest{
		Email:    email,
		Password: userPassword,
		FullName: name,
	})
	require.NoError(t, err, "Signup should succeed")
	assertAuthResponse(t, resp)
	return resp
}

// loginSuperadmin signs in as the seeded superadmin.
func loginSuperadmin(t *testing.T, client *authsdk.SDKClient) *authsdk.Session {
	t.Helper()

	session, err := client.SigninSession(t.Context(), superadminEmail, superadminPassword)
	require.NoError(t, err, "Superadmin login should succeed")
	require.NotNil(t, session)
	return session
}

// assertAuthResponse verifies an auth response has all required fields.
func assertAuthResponse(t *testing.T, resp *authsdk.AuthResponse) {
	t.Helper()
	require.NotNil(t, resp)
	require.NotEmpty(t, resp.AccessToken, "Access token should not be empty")
	require.NotEmpty(t, resp.RefreshToken, "Refresh token should not be empty")
	require.NotEmpty(t, resp.User.UID, "User UID should not be empty")
}

// assertCode checks that err is an API error with the given status and code.
func assertCode(t *testing.T, err error, status int, code string) {
	t.Helper()
	require.Error(t, err)

	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode, "unexpected status: %s", err)
	require.Equal(t, code, apiErr.Code, "unexpected code: %s", err)
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
