package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/userhub/userhub/internal/model"
)

// Cache key prefixes and TTLs.
const (
	userProfileKeyPrefix = "user:profile:"

	// DefaultUserTTL is the TTL for cached user profiles.
	DefaultUserTTL = 5 * time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// GetUser retrieves a cached user profile by ID.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetUser(ctx context.Context, id string) (*model.User, error) {
	key := userProfileKeyPrefix + id

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, ErrCacheMiss
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		// Corrupted entry - drop it and report a miss
		c.client.Del(ctx, key)
		return nil, ErrCacheMiss
	}

	return &user, nil
}

// SetUser caches a user profile.
// The password hash is stripped before caching; Redis never holds credentials.
func (c *Cache) SetUser(ctx context.Context, user *model.User) error {
	key := userProfileKeyPrefix + user.ID

	stripped := *user
	stripped.PasswordHash = ""

	data, err := json.Marshal(&stripped)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	if err := c.client.Set(ctx, key, data, DefaultUserTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache user: %w", err)
	}

	return nil
}

// DeleteUser removes a cached user profile.
// Called whenever the user row is mutated.
func (c *Cache) DeleteUser(ctx context.Context, id string) error {
	key := userProfileKeyPrefix + id

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete user from cache: %w", err)
	}

	return nil
}
