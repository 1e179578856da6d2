package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/noesis-ai/noesis/internal/api"
	"github.com/noesis-ai/noesis/internal/domain"
)

type contextKey string

const (
	PrincipalKey contextKey = "principal"
	ScopeKey     contextKey = "scope"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Principal, error)
}

// APIKeyAuth resolves the bearer token to a principal and stores it in the
// request context.
func APIKeyAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			principal, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ScopeContext derives the request scope from the authenticated org and the
// optional narrowing headers. The org always comes from the token, so a
// caller can never declare its way into another tenant.
func ScopeContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := GetPrincipal(r.Context())
		if principal == nil {
			api.Error(w, http.StatusUnauthorized, "missing principal")
			return
		}

		scope := domain.Scope{
			OrgID:        principal.OrgID,
			ProductID:    r.Header.Get("X-Product-ID"),
			ClientID:     r.Header.Get("X-Client-ID"),
			EngagementID: r.Header.Get("X-Engagement-ID"),
		}
		if err := scope.Validate(); err != nil {
			api.HandleError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), ScopeKey, scope)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetPrincipal returns the authenticated principal from context, or nil.
func GetPrincipal(ctx context.Context) *domain.Principal {
	principal, _ := ctx.Value(PrincipalKey).(*domain.Principal)
	return principal
}

// GetScope returns the request scope from context.
func GetScope(ctx context.Context) domain.Scope {
	scope, _ := ctx.Value(ScopeKey).(domain.Scope)
	return scope
}

// GetOrgID returns the authenticated org from context.
func GetOrgID(ctx context.Context) string {
	if p := GetPrincipal(ctx); p != nil {
		return p.OrgID
	}
	return ""
}
