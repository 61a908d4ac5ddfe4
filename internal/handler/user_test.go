package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/userhub/userhub/internal/handler/dto"
	"github.com/userhub/userhub/internal/model"
	"github.com/userhub/userhub/internal/service"
)

// withURLParam injects a chi route parameter into the request context.
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestListUsers_Success(t *testing.T) {
	svc := &mockAccountService{
		listOut: &service.ListUsersOutput{
			Users:      []*model.User{testUser()},
			NextCursor: "next-cursor",
			HasMore:    true,
		},
	}
	h := NewUserHandler(svc, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users?limit=10", nil)
	req = withAuthContext(req, model.RoleAdmin)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp dto.UserListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("expected 1 user, got %d", len(resp.Data))
	}
	if resp.Pagination == nil || !resp.Pagination.HasMore {
		t.Error("expected pagination with has_more=true")
	}
	if resp.Pagination.NextCursor != "next-cursor" {
		t.Errorf("next_cursor = %q", resp.Pagination.NextCursor)
	}
}

func TestListUsers_LimitClamped(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  int
	}{
		{"AboveMaximum", "limit=150", 100},
		{"WithinRange", "limit=50", 50},
		{"Invalid", "limit=abc", 20},
		{"Zero", "limit=0", 20},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockAccountService{listOut: &service.ListUsersOutput{}}
			h := NewUserHandler(svc, testLogger())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/users?"+tc.query, nil)
			req = withAuthContext(req, model.RoleAdmin)
			rec := httptest.NewRecorder()

			h.List(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
			}
			if svc.gotList.Limit != tc.want {
				t.Errorf("limit = %d, want %d", svc.gotList.Limit, tc.want)
			}
		})
	}
}

func TestListUsers_InvalidCursor(t *testing.T) {
	h := NewUserHandler(&mockAccountService{listErr: service.ErrInvalidCursor}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users?cursor=garbage", nil)
	req = withAuthContext(req, model.RoleAdmin)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestGetUser_Self(t *testing.T) {
	h := NewUserHandler(&mockAccountService{user: testUser()}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/01J0000000000000000000USER", nil)
	req = withAuthContext(req)
	req = withURLParam(req, "id", "01J0000000000000000000USER")
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestGetUser_OtherUserForbidden(t *testing.T) {
	h := NewUserHandler(&mockAccountService{user: testUser()}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/01J0000000000000000000OTHR", nil)
	req = withAuthContext(req)
	req = withURLParam(req, "id", "01J0000000000000000000OTHR")
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
}

func TestGetUser_OtherUserAsAdmin(t *testing.T) {
	h := NewUserHandler(&mockAccountService{user: testUser()}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/01J0000000000000000000OTHR", nil)
	req = withAuthContext(req, model.RoleAdmin)
	req = withURLParam(req, "id", "01J0000000000000000000OTHR")
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	h := NewUserHandler(&mockAccountService{getUserErr: service.ErrUserNotFound}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/01J0000000000000000000MISS", nil)
	req = withAuthContext(req, model.RoleAdmin)
	req = withURLParam(req, "id", "01J0000000000000000000MISS")
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestUpdateUser_SelfRename(t *testing.T) {
	updated := testUser()
	updated.Name = "New Name"
	svc := &mockAccountService{updateOut: updated}
	h := NewUserHandler(svc, testLogger())

	body := `{"name":"New Name"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/01J0000000000000000000USER", strings.NewReader(body))
	req = withAuthContext(req)
	req = withURLParam(req, "id", "01J0000000000000000000USER")
	rec := httptest.NewRecorder()

	h.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if svc.gotUpdate.Name == nil || *svc.gotUpdate.Name != "New Name" {
		t.Errorf("service received name %v", svc.gotUpdate.Name)
	}
}

func TestUpdateUser_SelfRoleChangeForbidden(t *testing.T) {
	h := NewUserHandler(&mockAccountService{updateOut: testUser()}, testLogger())

	body := `{"roles":["admin"]}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/01J0000000000000000000USER", strings.NewReader(body))
	req = withAuthContext(req)
	req = withURLParam(req, "id", "01J0000000000000000000USER")
	rec := httptest.NewRecorder()

	h.Update(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
}

func TestUpdateUser_AdminDeactivates(t *testing.T) {
	updated := testUser()
	updated.Active = false
	svc := &mockAccountService{updateOut: updated}
	h := NewUserHandler(svc, testLogger())

	body := `{"active":false}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/01J0000000000000000000OTHR", strings.NewReader(body))
	req = withAuthContext(req, model.RoleAdmin)
	req = withURLParam(req, "id", "01J0000000000000000000OTHR")
	rec := httptest.NewRecorder()

	h.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if svc.gotUpdate.Active == nil || *svc.gotUpdate.Active {
		t.Errorf("service received active %v", svc.gotUpdate.Active)
	}
}

func TestUpdateUser_OtherUserForbidden(t *testing.T) {
	h := NewUserHandler(&mockAccountService{updateOut: testUser()}, testLogger())

	body := `{"name":"Sneaky"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/01J0000000000000000000OTHR", strings.NewReader(body))
	req = withAuthContext(req)
	req = withURLParam(req, "id", "01J0000000000000000000OTHR")
	rec := httptest.NewRecorder()

	h.Update(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
}

func TestUpdateUser_InvalidRole(t *testing.T) {
	h := NewUserHandler(&mockAccountService{updateErr: service.ErrInvalidRole}, testLogger())

	body := `{"roles":["superuser"]}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/01J0000000000000000000OTHR", strings.NewReader(body))
	req = withAuthContext(req, model.RoleAdmin)
	req = withURLParam(req, "id", "01J0000000000000000000OTHR")
	rec := httptest.NewRecorder()

	h.Update(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}
