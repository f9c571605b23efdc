package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"contactbook/internal/models"
)

const (
	birthdayPrefix = "birthdays:"
	dayLayout      = "2006-01-02"
)

func birthdayKey(userID string, day time.Time, daygap int) string {
	return birthdayPrefix + userID + ":" + day.Format(dayLayout) + ":" + strconv.Itoa(daygap)
}

// BirthdayCache stores upcoming-birthday lookups per user, day and window.
type BirthdayCache struct {
	client  *redis.Client
	timeout time.Duration
}

func NewBirthdayCache(client *redis.Client, opTimeout time.Duration) *BirthdayCache {
	return &BirthdayCache{client: client, timeout: opTimeout}
}

func (c *BirthdayCache) Get(ctx context.Context, userID string, day time.Time, daygap int) ([]models.Contact, bool, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.client.Get(ctx, birthdayKey(userID, day, daygap)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var contacts []models.Contact
	if err := json.Unmarshal(raw, &contacts); err != nil {
		return nil, false, fmt.Errorf("decode birthdays: %w", err)
	}
	return contacts, true, nil
}

func (c *BirthdayCache) Set(ctx context.Context, userID string, day time.Time, daygap int, contacts []models.Contact, ttl time.Duration) error {
	if contacts == nil {
		contacts = []models.Contact{}
	}
	payload, err := json.Marshal(contacts)
	if err != nil {
		return fmt.Errorf("encode birthdays: %w", err)
	}

	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	return c.client.Set(ctx, birthdayKey(userID, day, daygap), payload, ttl).Err()
}

// PurgeBefore deletes every birthday entry computed for a date earlier than
// day and returns how many keys were removed.
func (c *BirthdayCache) PurgeBefore(ctx context.Context, day time.Time) (int, error) {
	cutoff := day.Format(dayLayout)
	removed := 0

	var cursor uint64
	for {
		scanCtx, cancel := withTimeout(ctx, c.timeout)
		keys, next, err := c.client.Scan(scanCtx, cursor, birthdayPrefix+"*", 100).Result()
		cancel()
		if err != nil {
			return removed, fmt.Errorf("scan birthdays: %w", err)
		}

		stale := make([]string, 0, len(keys))
		for _, key := range keys {
			parts := strings.Split(key, ":")
			if len(parts) != 4 {
				continue
			}
			if parts[2] < cutoff {
				stale = append(stale, key)
			}
		}

		if len(stale) > 0 {
			delCtx, cancel := withTimeout(ctx, c.timeout)
			n, err := c.client.Del(delCtx, stale...).Result()
			cancel()
			if err != nil {
				return removed, fmt.Errorf("delete birthdays: %w", err)
			}
			removed += int(n)
		}

		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}
