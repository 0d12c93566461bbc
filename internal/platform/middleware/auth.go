package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"consentbroker/internal/consent/models"
)

// TokenValidator resolves a bearer token into the calling principal.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Principal, error)
}

// Principal is the authenticated caller. EntityID is a provider ID for
// providers, a seeker ID for seekers and an operator name for admins.
type Principal struct {
	EntityID string
	Role     models.Role
}

type contextKeyPrincipal struct{}

// WithPrincipal stores p in ctx. Handlers read it back with GetPrincipal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal{}, p)
}

// GetPrincipal retrieves the authenticated principal from the context.
func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKeyPrincipal{}).(Principal)
	return p, ok
}

func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeAuthError(w, logger, r, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			principal, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeAuthError(w, logger, r, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, *principal)))
		})
	}
}

// RequireRole rejects principals whose role is not in roles. It must run
// after RequireAuth.
func RequireRole(logger *slog.Logger, roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal, ok := GetPrincipal(ctx)
			if !ok {
				writeAuthError(w, logger, r, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}
			if !slices.Contains(roles, principal.Role) {
				logger.WarnContext(ctx, "forbidden - role not allowed",
					"role", principal.Role,
					"path", r.URL.Path,
					"request_id", GetRequestID(ctx),
				)
				writeAuthError(w, logger, r, http.StatusForbidden, "forbidden", "Role not allowed for this route")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write([]byte(`{"error":"` + code + `","error_description":"` + description + `"}`))
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to write auth error response",
			"error", err,
			"request_id", GetRequestID(r.Context()),
		)
	}
}
