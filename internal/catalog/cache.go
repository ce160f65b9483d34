package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a read-through cache for single-product lookups. Misses and redis
// failures both fall back to the repository.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache builds a product cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(id int64) string {
	return fmt.Sprintf("catalog:product:%d", id)
}

// Get returns the cached product, or nil on miss.
func (c *Cache) Get(ctx context.Context, id int64) *Product {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		return nil
	}
	var p Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}
	return &p
}

// Set stores the product.
func (c *Cache) Set(ctx context.Context, p *Product) {
	if c == nil || c.client == nil || p == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, cacheKey(p.ID), data, c.ttl).Err()
}

// Invalidate drops cached entries for the given products. Must be called
// after any write that touches a product row, including stock changes.
func (c *Cache) Invalidate(ctx context.Context, ids ...int64) {
	if c == nil || c.client == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}
	_ = c.client.Del(ctx, keys...).Err()
}
