package repository

import (
	"context"
	"sync/atomic"
	"time"

	"wearlog/internal/domain"
	"wearlog/internal/models"

	"github.com/rs/zerolog"
)

// FailoverItemCache prefers the shared redis cache and falls back to
// the in-process one when redis misbehaves, retrying the primary
// after a recovery window.
type FailoverItemCache struct {
	primary   domain.ItemCache
	fallback  domain.ItemCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	downSince atomic.Int64
}

const recoveryWindow = time.Minute

func NewFailoverItemCache(primary, fallback domain.ItemCache, logger *zerolog.Logger) *FailoverItemCache {
	return &FailoverItemCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (c *FailoverItemCache) GetItems(ctx context.Context) ([]models.Item, error) {
	if c.tryPrimary() {
		items, err := c.primary.GetItems(ctx)
		if err == nil {
			return items, nil
		}
		c.markDown(err)
	}
	return c.fallback.GetItems(ctx)
}

func (c *FailoverItemCache) SetItems(ctx context.Context, items []models.Item) error {
	if c.tryPrimary() {
		if err := c.primary.SetItems(ctx, items); err != nil {
			c.markDown(err)
		}
	}
	return c.fallback.SetItems(ctx, items)
}

func (c *FailoverItemCache) Invalidate(ctx context.Context) error {
	if c.tryPrimary() {
		if err := c.primary.Invalidate(ctx); err != nil {
			c.markDown(err)
		}
	}
	return c.fallback.Invalidate(ctx)
}

// tryPrimary reports whether the primary should be used: it is up, or
// it has been down long enough that a recovery probe is due.
func (c *FailoverItemCache) tryPrimary() bool {
	if !c.isDown.Load() {
		return true
	}
	if time.Since(time.UnixMilli(c.downSince.Load())) > recoveryWindow {
		c.isDown.Store(false)
		return true
	}
	return false
}

func (c *FailoverItemCache) markDown(err error) {
	c.logger.Error().Err(err).Msg("primary item cache failed, falling back to memory")
	c.isDown.Store(true)
	c.downSince.Store(time.Now().UnixMilli())
}
