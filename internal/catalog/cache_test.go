package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	p := &Product{
		ID:   7,
		SKU:  "MART-001",
		Name: "Martillo carpintero",
		Pricing: Pricing{
			CostPrice:    8000,
			SellingPrice: 12990,
		},
		Inventory: Inventory{CurrentStock: 10, MinStock: 5},
		IsActive:  true,
	}
	c.Set(ctx, p)

	got := c.Get(ctx, 7)
	require.NotNil(t, got)
	assert.Equal(t, p.SKU, got.SKU)
	assert.Equal(t, p.Pricing.SellingPrice, got.Pricing.SellingPrice)
	assert.Equal(t, p.Inventory.CurrentStock, got.Inventory.CurrentStock)
}

func TestCacheMissReturnsNil(t *testing.T) {
	c, _ := newTestCache(t)
	assert.Nil(t, c.Get(context.Background(), 999))
}

func TestCacheInvalidateDropsEntries(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, &Product{ID: 1, SKU: "A-1"})
	c.Set(ctx, &Product{ID: 2, SKU: "B-1"})

	c.Invalidate(ctx, 1, 2)

	assert.Nil(t, c.Get(ctx, 1))
	assert.Nil(t, c.Get(ctx, 2))
}

func TestCacheExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, &Product{ID: 3, SKU: "C-1"})
	require.NotNil(t, c.Get(ctx, 3))

	mr.FastForward(2 * time.Minute)

	assert.Nil(t, c.Get(ctx, 3))
}

func TestCacheNilSafety(t *testing.T) {
	ctx := context.Background()

	var c *Cache
	assert.Nil(t, c.Get(ctx, 1))
	c.Set(ctx, &Product{ID: 1})
	c.Invalidate(ctx, 1)

	empty := NewCache(nil, 0)
	assert.Nil(t, empty.Get(ctx, 1))
	empty.Set(ctx, &Product{ID: 1})
	empty.Invalidate(ctx, 1)
}
