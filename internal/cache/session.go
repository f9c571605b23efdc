package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"contactbook/internal/models"
)

func userKey(id string) string         { return "user:" + id }
func refreshTokenKey(id string) string { return "refresh_token:" + id }

// SessionCache holds cached user snapshots and the single active refresh
// token per user. A missing key is reported as ok=false with a nil error.
type SessionCache struct {
	client  *redis.Client
	timeout time.Duration
}

func NewSessionCache(client *redis.Client, opTimeout time.Duration) *SessionCache {
	return &SessionCache{client: client, timeout: opTimeout}
}

func (c *SessionCache) SetUserSnapshot(ctx context.Context, snapshot models.UserSnapshot, ttl time.Duration) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	return c.client.Set(ctx, userKey(snapshot.ID), payload, ttl).Err()
}

func (c *SessionCache) GetUserSnapshot(ctx context.Context, id string) (models.UserSnapshot, bool, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.client.Get(ctx, userKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.UserSnapshot{}, false, nil
	}
	if err != nil {
		return models.UserSnapshot{}, false, err
	}

	var snapshot models.UserSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return models.UserSnapshot{}, false, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return snapshot, true, nil
}

func (c *SessionCache) DeleteUserSnapshot(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	return c.client.Del(ctx, userKey(id)).Err()
}

func (c *SessionCache) SetRefreshToken(ctx context.Context, id, token string, ttl time.Duration) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	return c.client.Set(ctx, refreshTokenKey(id), token, ttl).Err()
}

func (c *SessionCache) GetRefreshToken(ctx context.Context, id string) (string, bool, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	token, err := c.client.Get(ctx, refreshTokenKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

func (c *SessionCache) DeleteRefreshToken(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	return c.client.Del(ctx, refreshTokenKey(id)).Err()
}

// DeleteSession drops both the snapshot and the refresh token in one call.
func (c *SessionCache) DeleteSession(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	return c.client.Del(ctx, userKey(id), refreshTokenKey(id)).Err()
}
