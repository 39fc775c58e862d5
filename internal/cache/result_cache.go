package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// ResultCache keeps the rendered recipe HTML for each browser session.
type ResultCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewResultCache(client *redisv9.Client, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ResultCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *ResultCache) SaveResult(ctx context.Context, sessionID, html string) error {
	if err := c.client.Set(ctx, resultKey(sessionID), html, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set result failed: %w", err)
	}
	return nil
}

// GetResult reports false when the session has no stored result.
func (c *ResultCache) GetResult(ctx context.Context, sessionID string) (string, bool, error) {
	html, err := c.client.Get(ctx, resultKey(sessionID)).Result()
	if errors.Is(err, redisv9.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get result failed: %w", err)
	}
	return html, true, nil
}

func resultKey(sessionID string) string {
	return "recipes:result:" + sessionID
}
