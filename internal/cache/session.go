package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/userhub/userhub/internal/model"
)

// sessionKeyPrefix is the Redis key prefix for session records.
const sessionKeyPrefix = "session:"

// CreateSession stores a session record with a TTL matching the token lifetime.
// Deleting the record revokes every token carrying its ID.
func (c *Cache) CreateSession(ctx context.Context, session *model.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	key := sessionKeyPrefix + session.ID
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	return nil
}

// GetSession retrieves a session record by ID.
// Returns nil without error on miss (revoked or expired). Redis
// failures are surfaced so callers can tell an outage from a
// revocation; the session store is the source of truth here, not a
// fallthrough cache.
func (c *Cache) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	key := sessionKeyPrefix + sessionID

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Miss means the session was revoked or the TTL elapsed.
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		// Corrupted entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return &session, nil
}

// DeleteSession removes a session record, revoking its token.
func (c *Cache) DeleteSession(ctx context.Context, sessionID string) error {
	key := sessionKeyPrefix + sessionID
	return c.client.Del(ctx, key).Err()
}
