package middleware

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/userhub/userhub/internal/auth"
	"github.com/userhub/userhub/internal/model"
)

// RequireRole returns middleware that enforces role requirements.
// Must be applied after Auth middleware.
// If multiple roles are provided, having ANY of them is sufficient.
func RequireRole(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.AuthFromContext(r.Context())
			if authCtx == nil {
				writeRoleError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			// Admin grants all permissions
			if slices.Contains(authCtx.Roles, model.RoleAdmin) {
				next.ServeHTTP(w, r)
				return
			}

			// Check if any required role is present
			for _, req := range required {
				if slices.Contains(authCtx.Roles, req) {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeRoleError(w, http.StatusForbidden, "FORBIDDEN",
				fmt.Sprintf("Insufficient permissions. Required role: %s", required[0]))
		})
	}
}

// RequireAdmin is a convenience middleware for the admin role.
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireRole(model.RoleAdmin)
}

// writeRoleError writes a role-check error response.
func writeRoleError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(fmt.Sprintf(`{"error":%q,"code":%q}`, message, code)))
}
