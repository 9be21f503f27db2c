package httpx

import (
	"math"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig allows RequestsPerWindow requests per Window for each key,
// with up to Burst of them at once.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

// Route rate limit profiles. Each can be overridden with
// RATELIMIT_{PROFILE}_REQUESTS, RATELIMIT_{PROFILE}_WINDOW_SEC and
// RATELIMIT_{PROFILE}_BURST, e.g. RATELIMIT_SIGNIN_REQUESTS=30.
var (
	SignupLimit             = perMinute(5)
	SigninLimit             = perMinute(15)
	RefreshLimit            = perMinute(30)
	ForgotPasswordLimit     = perMinute(3)
	ResetPasswordLimit      = perMinute(5)
	VerifyEmailLimit        = perMinute(5)
	ResendVerificationLimit = perMinute(3)

	// DefaultLimit applies to every other route.
	DefaultLimit = perMinute(100)
)

func perMinute(n int) RateLimitConfig {
	return RateLimitConfig{RequestsPerWindow: n, Window: time.Minute, Burst: n}
}

func init() {
	SignupLimit = ParseRateLimitFromEnv("SIGNUP", SignupLimit)
	SigninLimit = ParseRateLimitFromEnv("SIGNIN", SigninLimit)
	RefreshLimit = ParseRateLimitFromEnv("REFRESH", RefreshLimit)
	ForgotPasswordLimit = ParseRateLimitFromEnv("FORGOT_PASSWORD", ForgotPasswordLimit)
	ResetPasswordLimit = ParseRateLimitFromEnv("RESET_PASSWORD", ResetPasswordLimit)
	VerifyEmailLimit = ParseRateLimitFromEnv("VERIFY_EMAIL", VerifyEmailLimit)
	ResendVerificationLimit = ParseRateLimitFromEnv("RESEND_VERIFICATION", ResendVerificationLimit)
	DefaultLimit = ParseRateLimitFromEnv("DEFAULT", DefaultLimit)
}

// ParseRateLimitFromEnv returns defaults with any RATELIMIT_{profile}_*
// overrides applied. Values that are not positive integers are ignored.
func ParseRateLimitFromEnv(profile string, defaults RateLimitConfig) RateLimitConfig {
	cfg := defaults
	if n, ok := positiveEnv("RATELIMIT_" + profile + "_REQUESTS"); ok {
		cfg.RequestsPerWindow = n
	}
	if n, ok := positiveEnv("RATELIMIT_" + profile + "_WINDOW_SEC"); ok {
		cfg.Window = time.Duration(n) * time.Second
	}
	if n, ok := positiveEnv("RATELIMIT_" + profile + "_BURST"); ok {
		cfg.Burst = n
	}
	return cfg
}

func positiveEnv(key string) (int, bool) {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// KeyExtractor names the bucket a request is counted against. An empty key
// exempts the request.
type KeyExtractor func(*http.Request) string

// ClientIP is the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// UserOrIP keys authenticated requests by user id and anonymous ones by
// client IP. The prefixes keep the two spaces apart.
func UserOrIP(r *http.Request) string {
	if id, ok := UserIDFromContext(r.Context()); ok {
		return "user:" + strconv.FormatInt(id, 10)
	}
	return "ip:" + ClientIP(r)
}

// idleEviction is how long a bucket may go unused before it is dropped.
const idleEviction = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// buckets holds one token bucket per key.
type buckets struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	byKey     map[string]*bucket
	lastSweep time.Time
}

func newBuckets(cfg RateLimitConfig) *buckets {
	return &buckets{
		limit:     rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		burst:     cfg.Burst,
		byKey:     make(map[string]*bucket),
		lastSweep: time.Now(),
	}
}

// take spends a token for key. When none is left it reports how long until
// the next one.
func (b *buckets) take(key string, now time.Time) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.lastSweep) >= idleEviction {
		for k, bk := range b.byKey {
			if now.Sub(bk.lastSeen) >= idleEviction {
				delete(b.byKey, k)
			}
		}
		b.lastSweep = now
	}

	bk, ok := b.byKey[key]
	if !ok {
		bk = &bucket{limiter: rate.NewLimiter(b.limit, b.burst)}
		b.byKey[key] = bk
	}
	bk.lastSeen = now

	if bk.limiter.AllowN(now, 1) {
		return true, 0
	}

	missing := 1 - bk.limiter.TokensAt(now)
	wait := time.Duration(missing / float64(b.limit) * float64(time.Second))
	return false, wait
}

// RateLimitMiddleware rejects requests with 429 once their key has used up
// its allowance.
func RateLimitMiddleware(cfg RateLimitConfig, key KeyExtractor) Middleware {
	b := newBuckets(cfg)
	limitHeader := strconv.Itoa(cfg.RequestsPerWindow)
	windowHeader := cfg.Window.String()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			ok, wait := b.take(k, time.Now())
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := max(int(math.Ceil(wait.Seconds())), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", limitHeader)
			w.Header().Set("X-RateLimit-Window", windowHeader)

			slogx.FromContext(r.Context()).Warn("rate limit exceeded",
				"key", k,
				"path", r.URL.Path,
				"retry_after", retryAfter,
			)

			WriteError(w, r, http.StatusTooManyRequests, CodeRateLimitExceeded, "Too many requests. Please try again later.")
		})
	}
}

// RateLimitByIP limits by client IP.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, ClientIP)
}

// RateLimitByUser limits by authenticated user, falling back to client IP.
func RateLimitByUser(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, UserOrIP)
}
