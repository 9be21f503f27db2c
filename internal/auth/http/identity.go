package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/auth/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/auth/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

type currentUserKey struct{}

// CurrentUserFromContext returns the caller resolved by the identity
// middleware.
func CurrentUserFromContext(ctx context.Context) (domain.CurrentUser, bool) {
	u, ok := ctx.Value(currentUserKey{}).(domain.CurrentUser)
	return u, ok
}

// identity runs after AuthnMiddleware and turns verified claims into the
// current user. Deleted accounts and ended sessions are rejected even while
// the access token is still within its lifetime.
func (r *Router) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()

		claims, ok := httpx.ClaimsFromContext(ctx)
		if !ok {
			httpx.WriteError(w, req, http.StatusUnauthorized, httpx.CodeUnauthorized, "Unauthorized")
			return
		}

		user, err := r.IdentityService.Resolve(ctx, claims)
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			httpx.WriteError(w, req, http.StatusUnauthorized, authsdk.ErrorCodeUserNotFound, "User not found")
			return
		case errors.Is(err, service.ErrSessionExpired):
			httpx.WriteError(w, req, http.StatusUnauthorized, authsdk.ErrorCodeSessionExpired, "Session expired")
			return
		case err != nil:
			httpx.WriteInternalError(w, req, err)
			return
		}

		ctx = context.WithValue(ctx, currentUserKey{}, user)
		ctx = httpx.WithRole(ctx, user.Role.String())
		ctx = slogx.WithContext(ctx, slogx.FromContext(ctx).With("user_uid", user.UID))
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// mustCurrentUser fetches the caller on a bearer route. It only fails when a
// handler is mounted without the identity middleware.
func mustCurrentUser(w http.ResponseWriter, r *http.Request) (domain.CurrentUser, bool) {
	u, ok := CurrentUserFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, http.StatusUnauthorized, httpx.CodeUnauthorized, "Unauthorized")
	}
	return u, ok
}
