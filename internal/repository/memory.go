package repository

import (
	"context"
	"sync"
	"time"

	"wearlog/internal/models"
)

// MemoryItemCache is the in-process fallback catalog cache.
type MemoryItemCache struct {
	mu        sync.RWMutex
	items     []models.Item
	expiresAt time.Time
	ttl       time.Duration
}

func NewMemoryItemCache(ttl time.Duration) *MemoryItemCache {
	return &MemoryItemCache{ttl: ttl}
}

func (c *MemoryItemCache) GetItems(ctx context.Context) ([]models.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.items == nil || time.Now().After(c.expiresAt) {
		return nil, nil
	}
	out := make([]models.Item, len(c.items))
	copy(out, c.items)
	return out, nil
}

func (c *MemoryItemCache) SetItems(ctx context.Context, items []models.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make([]models.Item, len(items))
	copy(c.items, items)
	c.expiresAt = time.Now().Add(c.ttl)
	return nil
}

func (c *MemoryItemCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	return nil
}
