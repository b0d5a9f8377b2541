package domain

import (
	"context"

	"wearlog/internal/models"
)

// ItemCache caches the active item catalog in front of the database.
// A (nil, nil) return is a cache miss.
type ItemCache interface {
	GetItems(ctx context.Context) ([]models.Item, error)
	SetItems(ctx context.Context, items []models.Item) error
	Invalidate(ctx context.Context) error
}

// EventPublisher decouples producers from the in-process event bus.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
