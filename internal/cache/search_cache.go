package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

const searchGenerationKey = "grants:search:generation"

// SearchCache stores grant search results keyed by a request fingerprint.
// Entries are namespaced by a generation counter so a grant import can drop
// every cached result at once.
type SearchCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewSearchCache(client *redisv9.Client, ttl time.Duration) *SearchCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SearchCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *SearchCache) Get(ctx context.Context, fingerprint string, out interface{}) (bool, error) {
	key, err := c.resultKey(ctx, fingerprint)
	if err != nil {
		return false, err
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redisv9.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get search result failed: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("unmarshal cached search result failed: %w", err)
	}
	return true, nil
}

func (c *SearchCache) Set(ctx context.Context, fingerprint string, value interface{}) error {
	key, err := c.resultKey(ctx, fingerprint)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal search result failed: %w", err)
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set search result failed: %w", err)
	}
	return nil
}

// Invalidate bumps the generation; older entries expire on their own.
func (c *SearchCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, searchGenerationKey).Err(); err != nil {
		return fmt.Errorf("redis bump search generation failed: %w", err)
	}
	return nil
}

func (c *SearchCache) resultKey(ctx context.Context, fingerprint string) (string, error) {
	gen, err := c.client.Get(ctx, searchGenerationKey).Int64()
	if err == redisv9.Nil {
		gen = 0
	} else if err != nil {
		return "", fmt.Errorf("redis get search generation failed: %w", err)
	}
	return fmt.Sprintf("grants:search:%d:%s", gen, fingerprint), nil
}
