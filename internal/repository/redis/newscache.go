package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/andsome/alpo-core/internal/domain"
	"github.com/redis/go-redis/v9"
)

const newsCacheKey = "news:snapshot"

// NewsCache persists the news cache across restarts. No TTL: a stale
// snapshot is still better than an empty first render. The stored snapshot
// carries its owning user id.
type NewsCache struct {
	client *Client
}

// NewNewsCache creates a news snapshot cache.
func NewNewsCache(client *Client) *NewsCache {
	return &NewsCache{client: client}
}

// Load returns the persisted snapshot, or (nil, nil) when none exists.
func (c *NewsCache) Load(ctx context.Context) (*domain.NewsSnapshot, error) {
	data, err := c.client.rdb.Get(ctx, newsCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load news snapshot: %w", err)
	}

	var snap domain.NewsSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal news snapshot: %w", err)
	}
	return &snap, nil
}

// Save replaces the persisted snapshot.
func (c *NewsCache) Save(ctx context.Context, snap domain.NewsSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal news snapshot: %w", err)
	}
	if err := c.client.rdb.Set(ctx, newsCacheKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save news snapshot: %w", err)
	}
	return nil
}
