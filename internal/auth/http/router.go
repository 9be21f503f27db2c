package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/cache"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/service"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"

	_ "github.com/aussiebroadwan/gatekeeper/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Options configures the router's outer surface.
type Options struct {
	// Prefix is prepended to every API route, e.g. "/api".
	Prefix string

	// Version is reported by the health endpoints.
	Version string

	// CORSOrigins lists the browser origins allowed to call the API. Empty
	// allows any origin without credentials.
	CORSOrigins []string

	// LogRequests emits one log line per request.
	LogRequests bool

	// The API docs are only served when both are set.
	SwaggerUsername string
	SwaggerPassword string
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	opts      Options
	verifier  jwtx.Verifier
	store     store.Store
	cache     cache.UserCache
	metrics   *httpx.Metrics
	startTime time.Time
	logger    *slog.Logger

	AuthService         *service.AuthService
	VerificationService *service.EmailVerificationService
	ResetService        *service.PasswordResetService
	IdentityService     *service.IdentityService
	UserService         *service.UserService
	UploadService       *service.UploadService
}

func NewRouter(
	opts Options,
	verifier jwtx.Verifier,
	st store.Store,
	c cache.UserCache,
	logger *slog.Logger,
) *Router {
	opts.Prefix = "/" + strings.Trim(opts.Prefix, "/")
	if opts.Prefix == "/" {
		opts.Prefix = ""
	}

	r := &Router{
		Mux:       http.NewServeMux(),
		opts:      opts,
		verifier:  verifier,
		store:     st,
		cache:     c,
		metrics:   httpx.NewMetrics("gatekeeper"),
		startTime: time.Now(),
		logger:    logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger, slogx.MiddlewareOptions{LogRequests: opts.LogRequests}),
		httpx.CORS(opts.CORSOrigins),
	}

	return r
}

// access is the authentication a route demands.
type access int

const (
	accessPublic access = iota
	accessBearer
)

// route is one entry of the route table.
type route struct {
	method  string
	path    string
	access  access
	roles   []string
	limit   httpx.RateLimitConfig // zero means httpx.DefaultLimit
	noLimit bool
	handler http.HandlerFunc
}

var adminRoles = []string{authsdk.RoleSuperadmin, authsdk.RoleAdmin}

func (r *Router) routes() []route {
	a := &AuthHandler{
		AuthService:         r.AuthService,
		VerificationService: r.VerificationService,
		ResetService:        r.ResetService,
	}
	u := &UsersHandler{UserService: r.UserService}
	up := &UploadHandler{UploadService: r.UploadService}

	return []route{
		{method: http.MethodPost, path: "/auth/signup", limit: httpx.SignupLimit, handler: a.HandleSignup},
		{method: http.MethodPost, path: "/auth/signin", limit: httpx.SigninLimit, handler: a.HandleSignin},
		{method: http.MethodPost, path: "/auth/logout", access: accessBearer, handler: a.HandleLogout},
		{method: http.MethodPost, path: "/auth/refresh", limit: httpx.RefreshLimit, handler: a.HandleRefresh},
		{method: http.MethodPost, path: "/auth/forgot-password", limit: httpx.ForgotPasswordLimit, handler: a.HandleForgotPassword},
		{method: http.MethodPost, path: "/auth/reset-password", limit: httpx.ResetPasswordLimit, handler: a.HandleResetPassword},
		{method: http.MethodPost, path: "/auth/verify-email", limit: httpx.VerifyEmailLimit, handler: a.HandleVerifyEmail},
		{method: http.MethodPost, path: "/auth/resend-verification", limit: httpx.ResendVerificationLimit, handler: a.HandleResendVerification},

		{method: http.MethodGet, path: "/users", access: accessBearer, roles: adminRoles, handler: u.HandleList},
		{method: http.MethodGet, path: "/users/me", access: accessBearer, handler: u.HandleGetMe},
		{method: http.MethodPatch, path: "/users/me", access: accessBearer, handler: u.HandleUpdateMe},
		{method: http.MethodPatch, path: "/users/me/password", access: accessBearer, handler: u.HandleChangePassword},
		{method: http.MethodGet, path: "/users/{uid}", access: accessBearer, roles: adminRoles, handler: u.HandleGet},
		{method: http.MethodPatch, path: "/users/{uid}", access: accessBearer, roles: adminRoles, handler: u.HandleAdminUpdate},
		{method: http.MethodDelete, path: "/users/{uid}", access: accessBearer, roles: adminRoles, handler: u.HandleDelete},

		{method: http.MethodPost, path: "/upload", access: accessBearer, handler: up.HandleUpload},
		{method: http.MethodPost, path: "/upload/presigned/upload", access: accessBearer, handler: up.HandlePresignUpload},
		{method: http.MethodPost, path: "/upload/presigned/download", access: accessBearer, handler: up.HandlePresignDownload},
		{method: http.MethodDelete, path: "/upload/{key...}", access: accessBearer, handler: up.HandleDelete},

		// Monitoring systems may poll frequently.
		{method: http.MethodGet, path: "/health", noLimit: true, handler: ReadyzHandler(r.startTime, r.opts.Version, r.store, r.cache)},
		{method: http.MethodGet, path: "/health/ready", noLimit: true, handler: ReadyzHandler(r.startTime, r.opts.Version, r.store, r.cache)},
		{method: http.MethodGet, path: "/health/live", noLimit: true, handler: LivezHandler(r.startTime, r.opts.Version)},
	}
}

func (r *Router) ApplyRoutes() {
	for _, rt := range r.routes() {
		pattern := rt.method + " " + r.opts.Prefix + rt.path
		r.Mux.Handle(pattern, r.chain(rt))
	}

	r.Mux.Handle("GET /metrics", r.metrics.Handler())

	if r.opts.SwaggerUsername != "" && r.opts.SwaggerPassword != "" {
		r.Mux.Handle(r.opts.Prefix+"/docs/",
			httpx.Chain(httpSwagger.Handler(),
				httpx.BasicAuth("docs", r.opts.SwaggerUsername, r.opts.SwaggerPassword),
			),
		)
	}

	r.Mux.Handle("/", httpx.NotFoundHandler())
}

// chain builds the middleware stack for one route. Bearer routes rate limit
// per user once the caller is known; public routes limit per IP.
func (r *Router) chain(rt route) http.Handler {
	limit := rt.limit
	if limit.RequestsPerWindow == 0 {
		limit = httpx.DefaultLimit
	}

	mws := []httpx.Middleware{r.metrics.Instrument(rt.method, r.opts.Prefix+rt.path)}

	switch rt.access {
	case accessBearer:
		mws = append(mws,
			httpx.AuthnMiddleware(r.verifier), // verify JWT (exp/kind)
			r.identity,                        // load the caller, reject ended sessions
		)
		if len(rt.roles) > 0 {
			mws = append(mws, httpx.RequireAnyRole(rt.roles...))
		}
		if !rt.noLimit {
			mws = append(mws, httpx.RateLimitByUser(limit))
		}
	default:
		if !rt.noLimit {
			mws = append(mws, httpx.RateLimitByIP(limit))
		}
	}

	return httpx.Chain(rt.handler, mws...)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title						Gatekeeper Accounts API
//	@version					1.0.0
//	@description				User authentication, profile management and upload delegation.
//	@description
//	@description				Access tokens are HS256 JWTs valid for 15 minutes by default. Refresh tokens rotate on every use.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/gatekeeper
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:4000
//	@BasePath					/api
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}
