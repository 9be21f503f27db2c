package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/cache"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const testSecret = "this-is-a-test-secret-with-32-bytes!"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sentMail struct {
	Kind  string
	To    string
	Token string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) record(kind, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{Kind: kind, To: to, Token: token})
	return nil
}

func (m *fakeMailer) SendVerification(_ context.Context, to, _, token string) error {
	return m.record("verify", to, token)
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, to, _, token string) error {
	return m.record("reset", to, token)
}

// lastToken returns the most recent token of kind sent to to.
func (m *fakeMailer) lastToken(t *testing.T, kind, to string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Kind == kind && m.sent[i].To == to {
			return m.sent[i].Token
		}
	}
	require.FailNow(t, "no mail", "no %s mail sent to %s", kind, to)
	return ""
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type testEnv struct {
	Store    *sqlite.Store
	Cache    *cache.RedisUserCache
	Redis    *miniredis.Miniredis
	Clock    *fakeClock
	Mailer   *fakeMailer
	Tokens   *jwtx.HS256
	Auth     *AuthService
	Verify   *EmailVerificationService
	Reset    *PasswordResetService
	Identity *IdentityService
	Users    *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	userCache := cache.NewRedisUserCache(client, 0, slogx.Discard())

	clock := &fakeClock{t: time.Now().UTC().Truncate(time.Second)}
	tokens, err := jwtx.NewHS256([]byte(testSecret), jwtx.WithIssuer("gatekeeper-test"), jwtx.WithClock(clock.Now))
	require.NoError(t, err)

	mailer := &fakeMailer{}
	verify := &EmailVerificationService{Store: st, Cache: userCache, Mailer: mailer, Clock: clock.Now}

	return &testEnv{
		Store:  st,
		Cache:  userCache,
		Redis:  mr,
		Clock:  clock,
		Mailer: mailer,
		Tokens: tokens,
		Auth: &AuthService{
			Store:        st,
			Cache:        userCache,
			Tokens:       tokens,
			Verification: verify,
		},
		Verify:   verify,
		Reset:    &PasswordResetService{Store: st, Cache: userCache, Mailer: mailer, Clock: clock.Now},
		Identity: &IdentityService{Store: st, Cache: userCache},
		Users:    &UserService{Store: st, Cache: userCache, Clock: clock.Now},
	}
}

func (e *testEnv) signup(t *testing.T, email, password string) signedUp {
	t.Helper()
	res, err := e.Auth.Signup(context.Background(), SignupInput{Email: email, Password: password, FullName: "Test User"})
	require.NoError(t, err)
	return signedUp{Access: res.Tokens.AccessToken, Refresh: res.Tokens.RefreshToken, UserID: res.User.ID, UID: res.User.UID}
}

// signedUp is the part of a signup result the tests care about.
type signedUp struct {
	Access  string
	Refresh string
	UserID  int64
	UID     string
}

func (e *testEnv) resolve(t *testing.T, access string) error {
	t.Helper()
	claims, err := e.Tokens.Verify(access, jwtx.KindAccess)
	require.NoError(t, err)
	_, err = e.Identity.Resolve(context.Background(), claims)
	return err
}

var errMailDown = errors.New("mail server down")
