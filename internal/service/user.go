// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/userhub/userhub/internal/audit"
	"github.com/userhub/userhub/internal/auth"
	"github.com/userhub/userhub/internal/cache"
	"github.com/userhub/userhub/internal/metrics"
	"github.com/userhub/userhub/internal/model"
	"github.com/userhub/userhub/internal/repository"
)

// Service errors.
var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password does not meet requirements")
	ErrNameTooLong        = errors.New("name too long")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidCursor      = errors.New("invalid pagination cursor")
)

// Email validation: local@domain with at least one dot in the domain.
// Full RFC 5322 is deliberately not attempted; the mailbox is the oracle.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const (
	maxEmailLength    = 254
	minPasswordLength = 8
	maxPasswordLength = 128
	maxNameLength     = 100

	// minLoginDuration is the floor for credential checks so response
	// timing does not reveal whether an email exists.
	minLoginDuration = 200 * time.Millisecond
)

// EventPublisher records audit events without blocking the caller.
type EventPublisher interface {
	PublishAsync(event audit.EventPayload)
}

// UserService handles account business logic.
type UserService struct {
	repo    *repository.Repository
	cache   *cache.Cache
	tokens  *auth.TokenIssuer
	events  EventPublisher
	metrics metrics.Recorder
}

// NewUserService creates a new UserService.
func NewUserService(repo *repository.Repository, cache *cache.Cache, tokens *auth.TokenIssuer, events EventPublisher, recorder metrics.Recorder) *UserService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &UserService{
		repo:    repo,
		cache:   cache,
		tokens:  tokens,
		events:  events,
		metrics: recorder,
	}
}

// RegisterInput defines input for creating an account.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	ClientIP string
}

// AuthOutput is the result of a successful registration or login.
type AuthOutput struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

// Register creates a new account and logs it in.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*AuthOutput, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if len(name) > maxNameLength {
		return nil, ErrNameTooLong
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           ulid.Make().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Roles:        []string{model.RoleUser},
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.metrics.IncRegistration()
	s.publishEvent(user.ID, user.Email, model.EventUserRegistered, input.ClientIP)

	out, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LoginInput defines input for authenticating.
type LoginInput struct {
	Email    string
	Password string
	ClientIP string
}

// Login verifies credentials and issues a token backed by a Redis session.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, input LoginInput) (*AuthOutput, error) {
	start := time.Now()
	defer func() {
		// Constant floor so timing does not leak whether the email exists.
		if elapsed := time.Since(start); elapsed < minLoginDuration {
			time.Sleep(minLoginDuration - elapsed)
		}
		s.metrics.ObserveLoginDuration(time.Since(start))
	}()

	email := strings.ToLower(strings.TrimSpace(input.Email))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.metrics.IncLoginFailed()
			s.publishEvent("", email, model.EventLoginFailed, input.ClientIP)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	match, err := auth.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !match {
		s.metrics.IncLoginFailed()
		s.publishEvent(user.ID, email, model.EventLoginFailed, input.ClientIP)
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		s.metrics.IncLoginFailed()
		s.publishEvent(user.ID, email, model.EventLoginFailed, input.ClientIP)
		return nil, ErrAccountDisabled
	}

	now := time.Now().UTC()
	// Best effort; a failed timestamp write never fails the login.
	_ = s.repo.UpdateLastLogin(ctx, user.ID, now)
	user.LastLoginAt = &now

	s.metrics.IncLoginSucceeded()
	s.publishEvent(user.ID, email, model.EventLoginSucceeded, input.ClientIP)

	return s.startSession(ctx, user)
}

// Logout revokes the session backing the presented token.
func (s *UserService) Logout(ctx context.Context, authCtx *model.AuthContext, clientIP string) error {
	if err := s.cache.DeleteSession(ctx, authCtx.SessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	s.metrics.IncLogout()
	s.publishEvent(authCtx.UserID, authCtx.Email, model.EventLogout, clientIP)
	return nil
}

// GetUser retrieves a user by ID, preferring the cache.
func (s *UserService) GetUser(ctx context.Context, id string) (*model.User, error) {
	if cached, err := s.cache.GetUser(ctx, id); err == nil {
		s.metrics.IncUserCacheHit()
		return cached, nil
	}
	s.metrics.IncUserCacheMiss()

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	// Best effort; a failed cache write never fails the read.
	_ = s.cache.SetUser(ctx, user)

	return user, nil
}

// ListUsersInput defines input for listing users.
type ListUsersInput struct {
	Cursor        string
	Limit         int
	Active        *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// ListUsersOutput defines output for listing users.
type ListUsersOutput struct {
	Users      []*model.User
	NextCursor string
	HasMore    bool
}

// ListUsers retrieves a paginated list of users.
func (s *UserService) ListUsers(ctx context.Context, input ListUsersInput) (*ListUsersOutput, error) {
	// Set defaults
	if input.Limit <= 0 || input.Limit > 100 {
		input.Limit = 20
	}

	filter := repository.UserFilter{
		Active:        input.Active,
		CreatedAfter:  input.CreatedAfter,
		CreatedBefore: input.CreatedBefore,
	}

	users, nextCursor, err := s.repo.ListUsers(ctx, filter, input.Cursor, input.Limit)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCursor) {
			return nil, ErrInvalidCursor
		}
		return nil, err
	}

	return &ListUsersOutput{
		Users:      users,
		NextCursor: nextCursor,
		HasMore:    nextCursor != "",
	}, nil
}

// UpdateUserInput defines input for updating a user.
// Nil pointer fields are left unchanged.
type UpdateUserInput struct {
	ID     string
	Name   *string
	Active *bool
	Roles  []string
}

// UpdateUser applies the requested changes and invalidates caches.
// Deactivating a user only blocks new logins; existing sessions lapse
// at their TTL.
func (s *UserService) UpdateUser(ctx context.Context, input UpdateUserInput) (*model.User, error) {
	user, err := s.repo.GetUserByID(ctx, input.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if len(name) > maxNameLength {
			return nil, ErrNameTooLong
		}
		user.Name = name
	}
	if input.Active != nil {
		user.Active = *input.Active
	}
	if input.Roles != nil {
		for _, role := range input.Roles {
			if role != model.RoleUser && role != model.RoleAdmin {
				return nil, ErrInvalidRole
			}
		}
		user.Roles = input.Roles
	}

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	_ = s.cache.DeleteUser(ctx, user.ID)

	return user, nil
}

// TokenTTL exposes the configured token lifetime.
func (s *UserService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

// startSession creates the server-side session and mints its token.
func (s *UserService) startSession(ctx context.Context, user *model.User) (*AuthOutput, error) {
	now := time.Now().UTC()
	session := &model.Session{
		ID:        ulid.Make().String(),
		UserID:    user.ID,
		Email:     user.Email,
		Roles:     user.Roles,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokens.TTL()),
	}

	if err := s.cache.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	token, expiresAt, err := s.tokens.Issue(session)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &AuthOutput{
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// publishEvent records an audit event if a publisher is configured.
func (s *UserService) publishEvent(userID, email, kind, clientIP string) {
	if s.events == nil {
		return
	}

	now := time.Now()
	payload := audit.EventPayload{
		UserID:     userID,
		Email:      email,
		Kind:       kind,
		OccurredAt: now.UnixMilli(),
	}
	if clientIP != "" {
		payload.IPHash = audit.HashIP(clientIP, now)
	}

	s.events.PublishAsync(payload)
}

// validateEmail checks format and length.
func validateEmail(email string) error {
	if email == "" || len(email) > maxEmailLength {
		return ErrInvalidEmail
	}
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// validatePassword checks length bounds.
func validatePassword(password string) error {
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
