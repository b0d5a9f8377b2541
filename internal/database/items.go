package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wearlog/internal/models"

	"github.com/google/uuid"
)

const itemColumns = `id, name, category, color, wear_count, wash_count,
    last_worn_at, last_washed_at, sort_order, is_active, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (*models.Item, error) {
	var item models.Item
	var color sql.NullString
	err := row.Scan(
		&item.ID, &item.Name, &item.Category, &color,
		&item.WearCount, &item.WashCount,
		&item.LastWornAt, &item.LastWashedAt,
		&item.SortOrder, &item.IsActive, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Color = color.String
	return &item, nil
}

func (db *DB) CreateItem(ctx context.Context, item *models.Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now()
	query := `INSERT INTO items (id, name, category, color, sort_order, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		item.ID, item.Name, item.Category, item.Color,
		item.SortOrder, item.IsActive, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	item.CreatedAt = now
	item.UpdatedAt = now
	return nil
}

func (db *DB) GetItemByID(ctx context.Context, id string) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = ?`
	item, err := scanItem(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func (db *DB) GetItemByName(ctx context.Context, name string) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE name = ?`
	item, err := scanItem(db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item not found: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func (db *DB) GetActiveItems(ctx context.Context) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE is_active = 1 ORDER BY sort_order, name`
	return db.queryItems(ctx, query)
}

func (db *DB) GetItemsByIDs(ctx context.Context, ids []string) ([]models.Item, error) {
	items := make([]models.Item, 0, len(ids))
	for _, id := range ids {
		item, err := db.GetItemByID(ctx, id)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}

func (db *DB) queryItems(ctx context.Context, query string, args ...any) ([]models.Item, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (db *DB) UpdateItem(ctx context.Context, item *models.Item) error {
	query := `UPDATE items SET name = ?, category = ?, color = ?, sort_order = ?, is_active = ?, updated_at = ?
              WHERE id = ?`
	now := time.Now()
	res, err := db.ExecContext(ctx, query,
		item.Name, item.Category, item.Color, item.SortOrder, item.IsActive, now, item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("item not found: %s", item.ID)
	}
	item.UpdatedAt = now
	return nil
}

func (db *DB) DeactivateItem(ctx context.Context, id string) error {
	query := `UPDATE items SET is_active = 0, updated_at = ? WHERE id = ?`
	res, err := db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("item not found: %s", id)
	}
	return nil
}

// SeedItems inserts catalog entries that do not exist yet, matched by
// name. Existing items are left untouched: counters are server-owned
// state and must survive restarts.
func (db *DB) SeedItems(ctx context.Context, items []models.Item) error {
	for i := range items {
		item := items[i]
		if _, err := db.GetItemByName(ctx, item.Name); err == nil {
			continue
		}
		item.IsActive = true
		if err := db.CreateItem(ctx, &item); err != nil {
			return fmt.Errorf("seed item %s: %w", item.Name, err)
		}
	}
	return nil
}
