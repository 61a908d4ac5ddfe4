package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/userhub/userhub/internal/auth"
	"github.com/userhub/userhub/internal/model"
)

// mockSessionStore is an in-memory SessionStore for tests.
type mockSessionStore struct {
	sessions map[string]*model.Session
	err      error
}

func (m *mockSessionStore) GetSession(_ context.Context, sessionID string) (*model.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.sessions[sessionID], nil
}

func testAuthConfig(store SessionStore, issuer *auth.TokenIssuer) AuthConfig {
	return AuthConfig{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Tokens:   issuer,
		Sessions: store,
	}
}

func testSession() *model.Session {
	now := time.Now().UTC()
	return &model.Session{
		ID:        "01J0000000000000000000SESS",
		UserID:    "01J0000000000000000000USER",
		Email:     "user@example.com",
		Roles:     []string{model.RoleUser},
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

const testSecret = "test-secret-at-least-32-bytes-long!!"

func TestAuth_ValidToken(t *testing.T) {
	issuer := auth.NewTokenIssuer(testSecret, time.Hour)
	session := testSession()

	token, _, err := issuer.Issue(session)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	store := &mockSessionStore{sessions: map[string]*model.Session{session.ID: session}}

	var gotCtx *model.AuthContext
	handler := Auth(testAuthConfig(store, issuer))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCtx = auth.AuthFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if gotCtx == nil {
		t.Fatal("expected auth context to be set")
	}
	if gotCtx.UserID != session.UserID {
		t.Errorf("UserID = %q, want %q", gotCtx.UserID, session.UserID)
	}
	if gotCtx.SessionID != session.ID {
		t.Errorf("SessionID = %q, want %q", gotCtx.SessionID, session.ID)
	}
}

func TestAuth_MissingToken(t *testing.T) {
	issuer := auth.NewTokenIssuer(testSecret, time.Hour)
	store := &mockSessionStore{sessions: map[string]*model.Session{}}

	handler := Auth(testAuthConfig(store, issuer))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"bare token", "some-token-without-bearer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
			}
		})
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	issuer := auth.NewTokenIssuer(testSecret, time.Hour)
	store := &mockSessionStore{sessions: map[string]*model.Session{}}

	handler := Auth(testAuthConfig(store, issuer))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Token signed with a different secret
	otherIssuer := auth.NewTokenIssuer("another-secret-also-32-bytes-long!!!", time.Hour)
	token, _, err := otherIssuer.Issue(testSession())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAuth_RevokedSession(t *testing.T) {
	issuer := auth.NewTokenIssuer(testSecret, time.Hour)
	session := testSession()

	token, _, err := issuer.Issue(session)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	// Session deleted from the store (logout). The token still has a
	// valid signature but must be rejected.
	store := &mockSessionStore{sessions: map[string]*model.Session{}}

	handler := Auth(testAuthConfig(store, issuer))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAuth_SessionLookupError(t *testing.T) {
	issuer := auth.NewTokenIssuer(testSecret, time.Hour)
	session := testSession()

	token, _, err := issuer.Issue(session)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	// Store outage. The request must be rejected without reaching the
	// wrapped handler.
	store := &mockSessionStore{err: errors.New("connection refused")}

	called := false
	handler := Auth(testAuthConfig(store, issuer))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
	if called {
		t.Error("handler invoked despite session lookup failure")
	}
}

func TestAuth_SessionUserMismatch(t *testing.T) {
	issuer := auth.NewTokenIssuer(testSecret, time.Hour)
	session := testSession()

	token, _, err := issuer.Issue(session)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	// Session exists but belongs to a different user.
	stored := *session
	stored.UserID = "01J0000000000000000000OTHR"
	store := &mockSessionStore{sessions: map[string]*model.Session{session.ID: &stored}}

	handler := Auth(testAuthConfig(store, issuer))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAuth_RolesFromSession(t *testing.T) {
	issuer := auth.NewTokenIssuer(testSecret, time.Hour)
	session := testSession()

	token, _, err := issuer.Issue(session)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	// Session roles changed after the token was issued. The middleware
	// must surface the session's roles, not the token's.
	stored := *session
	stored.Roles = []string{model.RoleUser, model.RoleAdmin}
	store := &mockSessionStore{sessions: map[string]*model.Session{session.ID: &stored}}

	var gotCtx *model.AuthContext
	handler := Auth(testAuthConfig(store, issuer))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCtx = auth.AuthFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if gotCtx == nil || len(gotCtx.Roles) != 2 {
		t.Fatalf("expected 2 roles from session, got %v", gotCtx)
	}
}
