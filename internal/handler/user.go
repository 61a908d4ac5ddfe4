package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/userhub/userhub/internal/auth"
	"github.com/userhub/userhub/internal/handler/dto"
	"github.com/userhub/userhub/internal/middleware"
	"github.com/userhub/userhub/internal/model"
	"github.com/userhub/userhub/internal/service"
)

// UserHandler handles HTTP requests for user operations.
type UserHandler struct {
	svc    AccountService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc AccountService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		svc:    svc,
		logger: logger,
	}
}

// List handles GET /api/v1/users.
// Admin only, enforced at the route level.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 20
	if l := query.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			if parsed > 100 {
				parsed = 100
			}
			limit = parsed
		}
	}

	input := service.ListUsersInput{
		Cursor: query.Get("cursor"),
		Limit:  limit,
	}

	if active := query.Get("active"); active != "" {
		if parsed, err := strconv.ParseBool(active); err == nil {
			input.Active = &parsed
		}
	}

	// Parse date filters
	if after := query.Get("created_after"); after != "" {
		if t, err := time.Parse(time.RFC3339, after); err == nil {
			input.CreatedAfter = &t
		}
	}
	if before := query.Get("created_before"); before != "" {
		if t, err := time.Parse(time.RFC3339, before); err == nil {
			input.CreatedBefore = &t
		}
	}

	result, err := h.svc.ListUsers(r.Context(), input)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	response := dto.ToUserListResponse(result.Users, result.NextCursor, result.HasMore)
	writeJSON(w, http.StatusOK, response)
}

// Get handles GET /api/v1/users/{id}.
// Users can read their own record; admins can read anyone's.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "User ID is required")
		return
	}

	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}
	if authCtx.UserID != id && !isAdmin(authCtx.Roles) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Cannot access another user's record")
		return
	}

	user, err := h.svc.GetUser(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

// Update handles PATCH /api/v1/users/{id}.
// Users can rename themselves; role and active changes are admin only.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "User ID is required")
		return
	}

	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req dto.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	admin := isAdmin(authCtx.Roles)
	if authCtx.UserID != id && !admin {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Cannot modify another user's record")
		return
	}
	if (req.Roles != nil || req.Active != nil) && !admin {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Role and status changes require admin")
		return
	}

	input := service.UpdateUserInput{
		ID:     id,
		Name:   req.Name,
		Active: req.Active,
		Roles:  req.Roles,
	}

	user, err := h.svc.UpdateUser(r.Context(), input)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("user_updated",
		"user_id", user.ID,
		"by_user_id", authCtx.UserID,
		"request_id", middleware.GetRequestID(r.Context()),
	)

	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

func isAdmin(roles []string) bool {
	for _, role := range roles {
		if role == model.RoleAdmin {
			return true
		}
	}
	return false
}
