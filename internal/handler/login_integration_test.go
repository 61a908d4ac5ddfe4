//go:build integration

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/userhub/userhub/internal/audit"
	"github.com/userhub/userhub/internal/auth"
	"github.com/userhub/userhub/internal/cache"
	"github.com/userhub/userhub/internal/handler/dto"
	"github.com/userhub/userhub/internal/metrics"
	"github.com/userhub/userhub/internal/model"
	"github.com/userhub/userhub/internal/repository"
	"github.com/userhub/userhub/internal/service"
	"github.com/userhub/userhub/internal/testutil"
)

// loginFloor mirrors the credential-check floor so timing does not
// reveal whether an email exists.
const loginFloor = 200 * time.Millisecond

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	mu     sync.Mutex
	events []audit.EventPayload
}

func (p *capturingPublisher) PublishAsync(event audit.EventPayload) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturingPublisher) captured() []audit.EventPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]audit.EventPayload(nil), p.events...)
}

func newLoginTestEnv(t *testing.T, events service.EventPublisher) (context.Context, *repository.Repository, *AuthHandler) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := repository.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetUsersSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset users schema: %v", err)
	}

	c, err := cache.New(ctx, "redis://localhost:6379")
	if err != nil {
		t.Skipf("Skipping integration test: Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if err := testutil.FlushRedis(ctx, c.Client()); err != nil {
		t.Fatalf("flush redis: %v", err)
	}

	tokens := auth.NewTokenIssuer("integration-secret-at-least-32-bytes!!", time.Hour)
	svc := service.NewUserService(repo, c, tokens, events, metrics.NewNoop())

	return ctx, repo, NewAuthHandler(svc, testLogger())
}

func seedAccount(t *testing.T, ctx context.Context, repo *repository.Repository, email, password string, active bool) *model.User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           ulid.Make().String(),
		Email:        email,
		Name:         "Seeded Account",
		PasswordHash: hash,
		Roles:        []string{model.RoleUser},
		Active:       active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func doLogin(t *testing.T, h *AuthHandler, email, password string) (*httptest.ResponseRecorder, time.Duration) {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	start := time.Now()
	h.Login(rec, req)
	return rec, time.Since(start)
}

// Unknown emails and wrong passwords must be indistinguishable: same
// status, byte-identical body, and neither answered faster than the
// credential-check floor.
func TestIntegrationLogin_UniformFailureResponse(t *testing.T) {
	ctx, repo, h := newLoginTestEnv(t, nil)

	email := testutil.UniqueEmail("uniform")
	seedAccount(t, ctx, repo, email, "correct horse battery staple", true)

	unknownRec, unknownTook := doLogin(t, h, testutil.UniqueEmail("nobody"), "some password")
	wrongRec, wrongTook := doLogin(t, h, email, "not the password")

	if unknownRec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown email: status = %d, want %d", unknownRec.Code, http.StatusUnauthorized)
	}
	if wrongRec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status = %d, want %d", wrongRec.Code, http.StatusUnauthorized)
	}
	if !bytes.Equal(unknownRec.Body.Bytes(), wrongRec.Body.Bytes()) {
		t.Errorf("response bodies differ:\nunknown email: %s\nwrong password: %s",
			unknownRec.Body.String(), wrongRec.Body.String())
	}
	if unknownTook < loginFloor {
		t.Errorf("unknown email answered in %v, want >= %v", unknownTook, loginFloor)
	}
	if wrongTook < loginFloor {
		t.Errorf("wrong password answered in %v, want >= %v", wrongTook, loginFloor)
	}
}

func TestIntegrationLogin_DisabledAccountAudited(t *testing.T) {
	pub := &capturingPublisher{}
	ctx, repo, h := newLoginTestEnv(t, pub)

	email := testutil.UniqueEmail("disabled")
	user := seedAccount(t, ctx, repo, email, "correct horse battery staple", false)

	rec, _ := doLogin(t, h, email, "correct horse battery staple")

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	var errResp dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if errResp.Code != "ACCOUNT_DISABLED" {
		t.Errorf("code = %q, want ACCOUNT_DISABLED", errResp.Code)
	}

	events := pub.captured()
	if len(events) != 1 {
		t.Fatalf("captured %d events, want 1", len(events))
	}
	if events[0].Kind != model.EventLoginFailed {
		t.Errorf("event kind = %q, want %q", events[0].Kind, model.EventLoginFailed)
	}
	if events[0].UserID != user.ID {
		t.Errorf("event user id = %q, want %q", events[0].UserID, user.ID)
	}
}
