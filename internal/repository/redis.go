package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wearlog/internal/config"
	"wearlog/internal/models"

	"github.com/redis/go-redis/v9"
)

const itemsCacheKey = "wearlog:items"

type RedisItemCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
	return redis.NewClient(options)
}

func NewRedisItemCache(client *redis.Client, ttl time.Duration) *RedisItemCache {
	return &RedisItemCache{client: client, ttl: ttl}
}

func (c *RedisItemCache) GetItems(ctx context.Context) ([]models.Item, error) {
	if c.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := c.client.Get(ctx, itemsCacheKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get items from redis: %w", err)
	}

	var items []models.Item
	if err := json.Unmarshal([]byte(val), &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal items: %w", err)
	}
	return items, nil
}

func (c *RedisItemCache) SetItems(ctx context.Context, items []models.Item) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal items: %w", err)
	}
	if err := c.client.Set(ctx, itemsCacheKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set items in redis: %w", err)
	}
	return nil
}

func (c *RedisItemCache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := c.client.Del(ctx, itemsCacheKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate items cache: %w", err)
	}
	return nil
}
