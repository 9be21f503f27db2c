package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	authhttp "github.com/aussiebroadwan/gatekeeper/internal/auth/http"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/cache"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/service"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/storage"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

const (
	testSecret    = "this-is-a-test-secret-with-32-bytes!"
	adminEmail    = "root@example.com"
	adminPassword = "root-password-1"
)

type mailbox struct {
	mu     sync.Mutex
	tokens map[string]string // kind:to -> latest token
}

func (m *mailbox) put(kind, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = map[string]string{}
	}
	m.tokens[kind+":"+to] = token
	return nil
}

func (m *mailbox) SendVerification(_ context.Context, to, _, token string) error {
	return m.put("verify", to, token)
}

func (m *mailbox) SendPasswordReset(_ context.Context, to, _, token string) error {
	return m.put("reset", to, token)
}

func (m *mailbox) token(t *testing.T, kind, to string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[kind+":"+to]
	require.True(t, ok, "no %s mail sent to %s", kind, to)
	return tok
}

type server struct {
	handler http.Handler
	mail    *mailbox
	objects *storage.MemoryStore
}

func newServer(t *testing.T) *server {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	userCache := cache.NewRedisUserCache(client, 0, slogx.Discard())

	tokens, err := jwtx.NewHS256([]byte(testSecret))
	require.NoError(t, err)

	mail := &mailbox{}
	objects := storage.NewMemoryStore("https://cdn.example.com")
	verify := &service.EmailVerificationService{Store: st, Cache: userCache, Mailer: mail}

	created, err := (&service.BootstrapService{Store: st}).SeedSuperadmin(ctx, domain.SuperadminSeed{
		Email:    adminEmail,
		Password: adminPassword,
	})
	require.NoError(t, err)
	require.True(t, created)

	r := authhttp.NewRouter(authhttp.Options{
		Prefix:          "/api",
		Version:         "test",
		SwaggerUsername: "docs",
		SwaggerPassword: "docs-password",
	}, tokens, st, userCache, slogx.Discard())
	r.AuthService = &service.AuthService{Store: st, Cache: userCache, Tokens: tokens, Verification: verify}
	r.VerificationService = verify
	r.ResetService = &service.PasswordResetService{Store: st, Cache: userCache, Mailer: mail}
	r.IdentityService = &service.IdentityService{Store: st, Cache: userCache}
	r.UserService = &service.UserService{Store: st, Cache: userCache}
	r.UploadService = &service.UploadService{Objects: objects}
	r.ApplyRoutes()

	return &server{handler: r, mail: mail, objects: objects}
}

func (s *server) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *server) signup(t *testing.T, email, password string) authsdk.AuthResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/signup", "", authsdk.SignupRequest{Email: email, Password: password, FullName: "Test User"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[authsdk.AuthResponse](t, rec)
}

func (s *server) signin(t *testing.T, email, password string) authsdk.AuthResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/signin", "", authsdk.SigninRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[authsdk.AuthResponse](t, rec)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) httpx.ErrorBody {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	body := decode[httpx.ErrorEnvelope](t, rec).Error
	require.Equal(t, code, body.Code)
	return body
}

func TestSignupSigninScenario(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	up := s.signup(t, "a@x.io", "password1")
	require.NotEmpty(t, up.AccessToken)
	require.NotEmpty(t, up.RefreshToken)
	require.Equal(t, "a@x.io", up.User.Email)
	require.Equal(t, "regular", up.User.Role)
	require.False(t, up.User.EmailVerified)

	in := s.signin(t, "a@x.io", "password1")
	require.Equal(t, up.User.UID, in.User.UID)

	rec := s.do(t, http.MethodGet, "/api/users/me", in.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Test User", decode[authsdk.UserResponse](t, rec).FullName)

	// The signup session was replaced by the signin.
	rec = s.do(t, http.MethodPost, "/api/auth/refresh", "", authsdk.RefreshRequest{RefreshToken: up.RefreshToken})
	requireError(t, rec, http.StatusUnauthorized, authsdk.ErrorCodeInvalidRefreshToken)
}

func TestSignupRejections(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	s.signup(t, "dup@x.io", "password1")

	rec := s.do(t, http.MethodPost, "/api/auth/signup", "", authsdk.SignupRequest{Email: "DUP@x.io", Password: "password1", FullName: "Again"})
	body := requireError(t, rec, http.StatusBadRequest, authsdk.ErrorCodeEmailTaken)
	require.Equal(t, "/api/auth/signup", body.Path)

	rec = s.do(t, http.MethodPost, "/api/auth/signup", "", authsdk.SignupRequest{Email: "new@x.io", Password: "short", FullName: "New"})
	body = requireError(t, rec, http.StatusBadRequest, authsdk.ErrorCodeValidation)
	require.Len(t, body.Details, 1)
	require.Equal(t, "password", body.Details[0].Field)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader("{not json"))
	out := httptest.NewRecorder()
	s.handler.ServeHTTP(out, req)
	requireError(t, out, http.StatusBadRequest, authsdk.ErrorCodeBadRequest)
}

func TestSigninDoesNotRevealAccounts(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	s.signup(t, "known@x.io", "password1")

	unknown := s.do(t, http.MethodPost, "/api/auth/signin", "", authsdk.SigninRequest{Email: "nobody@x.io", Password: "password1"})
	wrong := s.do(t, http.MethodPost, "/api/auth/signin", "", authsdk.SigninRequest{Email: "known@x.io", Password: "password2"})

	a := requireError(t, unknown, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials)
	b := requireError(t, wrong, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials)
	a.Timestamp, a.RequestID = "", ""
	b.Timestamp, b.RequestID = "", ""
	require.Equal(t, a, b)
}

func TestRefreshAndLogout(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	up := s.signup(t, "r@x.io", "password1")

	rec := s.do(t, http.MethodPost, "/api/auth/refresh", "", authsdk.RefreshRequest{RefreshToken: up.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decode[authsdk.AuthResponse](t, rec)
	require.NotEqual(t, up.RefreshToken, rotated.RefreshToken)

	rec = s.do(t, http.MethodPost, "/api/auth/refresh", "", authsdk.RefreshRequest{RefreshToken: up.RefreshToken})
	requireError(t, rec, http.StatusUnauthorized, authsdk.ErrorCodeInvalidRefreshToken)

	rec = s.do(t, http.MethodPost, "/api/auth/logout", rotated.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/users/me", rotated.AccessToken, nil)
	requireError(t, rec, http.StatusUnauthorized, authsdk.ErrorCodeSessionExpired)

	rec = s.do(t, http.MethodPost, "/api/auth/refresh", "", authsdk.RefreshRequest{RefreshToken: rotated.RefreshToken})
	requireError(t, rec, http.StatusUnauthorized, authsdk.ErrorCodeInvalidRefreshToken)

	rec = s.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	requireError(t, rec, http.StatusUnauthorized, authsdk.ErrorCodeUnauthorized)
}

func TestVerificationFlow(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	s.signup(t, "v@x.io", "password1")
	token := s.mail.token(t, "verify", "v@x.io")

	rec := s.do(t, http.MethodPost, "/api/auth/verify-email", "", authsdk.VerifyEmailRequest{Token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Email verified successfully", decode[authsdk.MessageResponse](t, rec).Message)

	rec = s.do(t, http.MethodPost, "/api/auth/verify-email", "", authsdk.VerifyEmailRequest{Token: token})
	requireError(t, rec, http.StatusBadRequest, authsdk.ErrorCodeInvalidOrExpiredToken)

	rec = s.do(t, http.MethodPost, "/api/auth/resend-verification?email=v@x.io", "", nil)
	requireError(t, rec, http.StatusBadRequest, authsdk.ErrorCodeAlreadyVerified)

	rec = s.do(t, http.MethodPost, "/api/auth/resend-verification?email=ghost@x.io", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/resend-verification", "", nil)
	requireError(t, rec, http.StatusBadRequest, authsdk.ErrorCodeValidation)

	me := s.signin(t, "v@x.io", "password1")
	require.True(t, me.User.EmailVerified)
}

func TestPasswordResetFlow(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	up := s.signup(t, "p@x.io", "password1")

	known := s.do(t, http.MethodPost, "/api/auth/forgot-password", "", authsdk.ForgotPasswordRequest{Email: "p@x.io"})
	unknown := s.do(t, http.MethodPost, "/api/auth/forgot-password", "", authsdk.ForgotPasswordRequest{Email: "ghost@x.io"})
	require.Equal(t, http.StatusOK, known.Code)
	require.Equal(t, known.Body.String(), unknown.Body.String())

	token := s.mail.token(t, "reset", "p@x.io")
	rec := s.do(t, http.MethodPost, "/api/auth/reset-password", "", authsdk.ResetPasswordRequest{Token: token, Password: "password2"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Password reset successfully", decode[authsdk.MessageResponse](t, rec).Message)

	rec = s.do(t, http.MethodPost, "/api/auth/reset-password", "", authsdk.ResetPasswordRequest{Token: token, Password: "password3"})
	requireError(t, rec, http.StatusBadRequest, authsdk.ErrorCodeInvalidOrExpiredToken)

	rec = s.do(t, http.MethodPost, "/api/auth/refresh", "", authsdk.RefreshRequest{RefreshToken: up.RefreshToken})
	requireError(t, rec, http.StatusUnauthorized, authsdk.ErrorCodeInvalidRefreshToken)

	s.signin(t, "p@x.io", "password2")
}

func TestUsersAdminRoutes(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	regular := s.signup(t, "reg@x.io", "password1")
	admin := s.signin(t, adminEmail, adminPassword)
	require.Equal(t, "superadmin", admin.User.Role)

	rec := s.do(t, http.MethodGet, "/api/users", regular.AccessToken, nil)
	requireError(t, rec, http.StatusForbidden, authsdk.ErrorCodeForbidden)

	rec = s.do(t, http.MethodGet, "/api/users?page=1&limit=1", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[authsdk.PaginatedUsers](t, rec)
	require.Len(t, page.Data, 1)
	require.Equal(t, 2, page.Meta.Total)
	require.True(t, page.Meta.HasNextPage)

	rec = s.do(t, http.MethodGet, "/api/users?limit=500", admin.AccessToken, nil)
	body := requireError(t, rec, http.StatusBadRequest, authsdk.ErrorCodeValidation)
	require.Equal(t, "limit", body.Details[0].Field)

	role := "admin"
	rec = s.do(t, http.MethodPatch, "/api/users/"+regular.User.UID, admin.AccessToken, authsdk.AdminUpdateUserRequest{Role: &role})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "admin", decode[authsdk.UserResponse](t, rec).Role)

	// The promotion is visible immediately, the cache was invalidated.
	rec = s.do(t, http.MethodGet, "/api/users/"+admin.User.UID, regular.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/users/"+admin.User.UID, regular.AccessToken, authsdk.AdminUpdateUserRequest{Role: &role})
	requireError(t, rec, http.StatusForbidden, authsdk.ErrorCodeForbidden)

	rec = s.do(t, http.MethodDelete, "/api/users/"+admin.User.UID, regular.AccessToken, nil)
	requireError(t, rec, http.StatusForbidden, authsdk.ErrorCodeForbidden)
	rec = s.do(t, http.MethodGet, "/api/users/me", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, "superadmin survives an admin delete")

	rec = s.do(t, http.MethodGet, "/api/users/01ARZ3NDEKTSV4RRFFQ69G5FAV", admin.AccessToken, nil)
	requireError(t, rec, http.StatusNotFound, authsdk.ErrorCodeNotFound)

	rec = s.do(t, http.MethodDelete, "/api/users/"+regular.User.UID, admin.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/users/me", regular.AccessToken, nil)
	requireError(t, rec, http.StatusUnauthorized, authsdk.ErrorCodeUserNotFound)

	// The email is free again.
	s.signup(t, "reg@x.io", "password1")
}

func TestProfileRoutes(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	up := s.signup(t, "me@x.io", "password1")

	name := "Ada Lovelace"
	rec := s.do(t, http.MethodPatch, "/api/users/me", up.AccessToken, authsdk.UpdateProfileRequest{FullName: &name})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, name, decode[authsdk.UserResponse](t, rec).FullName)

	rec = s.do(t, http.MethodPatch, "/api/users/me/password", up.AccessToken, authsdk.ChangePasswordRequest{CurrentPassword: "wrong-one", NewPassword: "password2"})
	body := requireError(t, rec, http.StatusBadRequest, authsdk.ErrorCodeBadRequest)
	require.Equal(t, "Current password is incorrect", body.Message)

	rec = s.do(t, http.MethodPatch, "/api/users/me/password", up.AccessToken, authsdk.ChangePasswordRequest{CurrentPassword: "password1", NewPassword: "password2"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Changing the password keeps the session.
	rec = s.do(t, http.MethodGet, "/api/users/me", up.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	s.signin(t, "me@x.io", "password2")
}

func multipartBody(t *testing.T, filename, contentType string, data []byte, folder string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)

	if folder != "" {
		require.NoError(t, mw.WriteField("folder", folder))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadRoutes(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	up := s.signup(t, "u@x.io", "password1")

	upload := func(filename, contentType string) *httptest.ResponseRecorder {
		body, ct := multipartBody(t, filename, contentType, []byte("\x89PNG fake image"), "avatars")
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("Authorization", "Bearer "+up.AccessToken)
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		return rec
	}

	rec := upload("my photo.png", "image/png")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	stored := decode[authsdk.UploadResponse](t, rec)
	require.True(t, strings.HasPrefix(stored.Key, "avatars/"))
	require.True(t, strings.HasSuffix(stored.Key, "-my_photo.png"))
	require.Equal(t, "https://cdn.example.com/"+stored.Key, stored.URL)
	require.Equal(t, "image/png", stored.MimeType)
	_, ok := s.objects.Get(stored.Key)
	require.True(t, ok)

	rec = upload("script.sh", "application/x-sh")
	body := requireError(t, rec, http.StatusBadRequest, authsdk.ErrorCodeBadRequest)
	require.Contains(t, body.Message, "File type application/x-sh is not allowed")

	rec = s.do(t, http.MethodPost, "/api/upload/presigned/upload", up.AccessToken, authsdk.PresignedUploadRequest{Filename: "doc.pdf", ContentType: "application/pdf", ExpiresIn: 120})
	require.Equal(t, http.StatusOK, rec.Code)
	presigned := decode[authsdk.PresignedURLResponse](t, rec)
	require.Equal(t, 120, presigned.ExpiresIn)
	require.True(t, strings.HasPrefix(presigned.Key, "uploads/"))

	rec = s.do(t, http.MethodPost, "/api/upload/presigned/download", up.AccessToken, authsdk.PresignedDownloadRequest{Key: stored.Key, ExpiresIn: 10})
	requireError(t, rec, http.StatusBadRequest, authsdk.ErrorCodeBadRequest)

	rec = s.do(t, http.MethodDelete, "/api/upload/"+stored.Key, up.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/upload/"+stored.Key, up.AccessToken, nil)
	requireError(t, rec, http.StatusNotFound, authsdk.ErrorCodeNotFound)

	rec = s.do(t, http.MethodPost, "/api/upload/presigned/upload", "", authsdk.PresignedUploadRequest{Filename: "doc.pdf", ContentType: "application/pdf"})
	requireError(t, rec, http.StatusUnauthorized, authsdk.ErrorCodeUnauthorized)
}

func TestSignupRateLimit(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	for i := range httpx.SignupLimit.Burst {
		rec := s.do(t, http.MethodPost, "/api/auth/signup", "", authsdk.SignupRequest{
			Email:    "rl" + string(rune('a'+i)) + "@x.io",
			Password: "password1",
			FullName: "Rate Limited",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := s.do(t, http.MethodPost, "/api/auth/signup", "", authsdk.SignupRequest{Email: "over@x.io", Password: "password1", FullName: "Over"})
	requireError(t, rec, http.StatusTooManyRequests, authsdk.ErrorCodeRateLimitExceeded)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestSystemRoutes(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/api/health/live", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "test", decode[authsdk.HealthResponse](t, rec).Version)

	for _, path := range []string{"/api/health", "/api/health/ready"} {
		rec = s.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		health := decode[authsdk.HealthResponse](t, rec)
		require.Equal(t, "ok", health.Status)
		require.Equal(t, map[string]string{"database": "ok", "cache": "ok"}, health.Checks)
	}

	rec = s.do(t, http.MethodGet, "/api/nope", "", nil)
	body := requireError(t, rec, http.StatusNotFound, authsdk.ErrorCodeNotFound)
	require.Equal(t, "Cannot GET /api/nope", body.Message)

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `gatekeeper_http_requests_total{method="GET",route="/api/health/live",status="200"} 1`)
}

func TestCorrelationID(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	const id = "5f0c6b3e-2d53-4b8c-9a41-1f7f0a2c9e11"
	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set(slogx.CorrelationHeader, id)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	require.Equal(t, id, rec.Header().Get(slogx.CorrelationHeader))
	body := requireError(t, rec, http.StatusUnauthorized, authsdk.ErrorCodeUnauthorized)
	require.Equal(t, id, body.RequestID)
}

func TestDocsRequireBasicAuth(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/api/docs/index.html", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/docs/index.html", nil)
	req.SetBasicAuth("docs", "docs-password")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
