package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/userhub/userhub/internal/auth"
	"github.com/userhub/userhub/internal/handler/dto"
	"github.com/userhub/userhub/internal/middleware"
	"github.com/userhub/userhub/internal/model"
	"github.com/userhub/userhub/internal/service"
)

// AccountService is the service surface the HTTP handlers depend on.
// Implemented by service.UserService.
type AccountService interface {
	Register(ctx context.Context, input service.RegisterInput) (*service.AuthOutput, error)
	Login(ctx context.Context, input service.LoginInput) (*service.AuthOutput, error)
	Logout(ctx context.Context, authCtx *model.AuthContext, clientIP string) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context, input service.ListUsersInput) (*service.ListUsersOutput, error)
	UpdateUser(ctx context.Context, input service.UpdateUserInput) (*model.User, error)
}

// AuthHandler handles HTTP requests for authentication operations.
type AuthHandler struct {
	svc    AccountService
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc AccountService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		logger: logger,
	}
}

// Register handles POST /api/v1/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	input := service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		ClientIP: middleware.ClientIP(r),
	}

	out, err := h.svc.Register(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("user_registered",
		"user_id", out.User.ID,
		"request_id", middleware.GetRequestID(r.Context()),
	)

	writeJSON(w, http.StatusCreated, dto.AuthResponse{
		Token:     out.Token,
		ExpiresAt: out.ExpiresAt,
		User:      dto.ToUserResponse(out.User),
	})
}

// Login handles POST /api/v1/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	input := service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		ClientIP: middleware.ClientIP(r),
	}

	out, err := h.svc.Login(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("user_logged_in",
		"user_id", out.User.ID,
		"request_id", middleware.GetRequestID(r.Context()),
	)

	writeJSON(w, http.StatusOK, dto.AuthResponse{
		Token:     out.Token,
		ExpiresAt: out.ExpiresAt,
		User:      dto.ToUserResponse(out.User),
	})
}

// Logout handles POST /api/v1/logout.
// Requires auth middleware.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	if err := h.svc.Logout(r.Context(), authCtx, middleware.ClientIP(r)); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("user_logged_out",
		"user_id", authCtx.UserID,
		"request_id", middleware.GetRequestID(r.Context()),
	)

	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/me.
// Requires auth middleware.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	user, err := h.svc.GetUser(r.Context(), authCtx.UserID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

// handleServiceError maps service errors to HTTP responses.
func (h *AuthHandler) handleServiceError(w http.ResponseWriter, err error) {
	handleServiceError(w, h.logger, err)
}

// handleServiceError is shared by all handlers in this package.
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "INVALID_EMAIL", "Invalid email address")
	case errors.Is(err, service.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "WEAK_PASSWORD", "Password must be between 8 and 128 characters")
	case errors.Is(err, service.ErrNameTooLong):
		writeError(w, http.StatusBadRequest, "NAME_TOO_LONG", "Name exceeds maximum length")
	case errors.Is(err, service.ErrEmailTaken):
		writeError(w, http.StatusConflict, "EMAIL_TAKEN", "Email already registered")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
	case errors.Is(err, service.ErrAccountDisabled):
		writeError(w, http.StatusForbidden, "ACCOUNT_DISABLED", "Account is disabled")
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	case errors.Is(err, service.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, "INVALID_ROLE", "Invalid role")
	case errors.Is(err, service.ErrInvalidCursor):
		writeError(w, http.StatusBadRequest, "INVALID_CURSOR", "Invalid pagination cursor")
	default:
		logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
