package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/userhub/userhub/internal/auth"
	"github.com/userhub/userhub/internal/model"
)

// SessionStore looks up the server-side session backing a token.
// Implemented by cache.Cache.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Tokens   *auth.TokenIssuer
	Sessions SessionStore
}

// Auth returns a middleware that authenticates API requests.
// It extracts the bearer token from the Authorization header, verifies
// the signature, confirms the backing session is still live, and
// injects the auth context into the request.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				logAuthFailure(cfg.Logger, r, "missing_token")
				writeAuthError(w)
				return
			}

			claims, err := cfg.Tokens.Verify(token)
			if err != nil {
				logAuthFailure(cfg.Logger, r, "invalid_token")
				writeAuthError(w)
				return
			}

			// A valid signature is not enough: the session must still
			// exist. Logout deletes it, revoking the token early.
			session, err := cfg.Sessions.GetSession(r.Context(), claims.SessionID)
			if err != nil {
				cfg.Logger.Error("session lookup failed during auth",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}
			if session == nil || session.UserID != claims.Subject {
				logAuthFailure(cfg.Logger, r, "session_revoked")
				writeAuthError(w)
				return
			}

			// Roles come from the session record, not the token.
			// Both are frozen at session creation; a role change
			// applies once the user logs in again.
			authCtx := &model.AuthContext{
				UserID:    session.UserID,
				SessionID: session.ID,
				Email:     session.Email,
				Roles:     session.Roles,
			}

			cfg.Logger.Debug("authentication successful",
				slog.String("user_id", authCtx.UserID),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken extracts the token from "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

func logAuthFailure(logger *slog.Logger, r *http.Request, reason string) {
	logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Invalid or missing token","code":"UNAUTHORIZED"}`))
}
