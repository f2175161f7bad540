package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/mesa-pos/api/internal/auth"
	"github.com/mesa-pos/api/internal/logging"
)

type contextKey string

const claimsKey contextKey = "claims"

// Codes sent with rejected requests, in the same {"error","code"} shape the
// handlers use.
const (
	codeUnauthenticated = "unauthenticated"
	codeForbidden       = "forbidden"
	codeBadTenant       = "invalid_tenant"
)

// Authenticate requires a bearer access token and puts its claims on the
// request context. Refresh tokens are rejected by auth.ValidateToken.
func Authenticate(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, reason := bearerToken(r)
			if token == "" {
				reject(w, r, http.StatusUnauthorized, codeUnauthenticated, reason)
				return
			}
			claims, err := auth.ValidateToken(jwtSecret, token)
			if err != nil {
				logging.FromContext(r.Context()).WithError(err).Debug("token rejected")
				reject(w, r, http.StatusUnauthorized, codeUnauthenticated, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// bearerToken returns the token of an "Authorization: Bearer" header, or an
// empty token and the reason it is unusable.
func bearerToken(r *http.Request) (token, reason string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", "invalid authorization format"
	}
	return strings.TrimSpace(token), ""
}

// RequireTenant confines a staff member to the tenant in their token: the
// {tid} path value must match it. OWNER gets no exemption.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			reject(w, r, http.StatusUnauthorized, codeUnauthenticated, "not authenticated")
			return
		}
		tenantID, err := uuid.Parse(r.PathValue("tid"))
		if err != nil {
			reject(w, r, http.StatusBadRequest, codeBadTenant, "invalid tenant ID")
			return
		}
		if tenantID != claims.TenantID {
			reject(w, r, http.StatusForbidden, codeForbidden, "access denied for this tenant")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole lets through staff whose role is one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			switch {
			case claims == nil:
				reject(w, r, http.StatusUnauthorized, codeUnauthenticated, "not authenticated")
			case !slices.Contains(roles, claims.Role):
				reject(w, r, http.StatusForbidden, codeForbidden, "insufficient permissions")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// WithClaims stores claims on ctx. Handler tests use it to skip token issuing.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the claims set by Authenticate, or nil.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

func reject(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	logging.FromContext(r.Context()).WithField("code", code).Debug(msg)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code}) //nolint:errcheck
}
