package database

import (
	"context"
	"fmt"
	"time"

	"wearlog/internal/models"

	"github.com/google/uuid"
)

// RecordWear appends one wear event per item and bumps the wear
// counters, all in a single transaction. Events are written in the
// order the ids were given; the counters are monotonic and
// order-sensitive, which is why the replayer never pipelines batches.
func (db *DB) RecordWear(ctx context.Context, clothesIDs []string, date string) (*models.SyncResult, error) {
	events, items, err := db.recordBatch(ctx, "wear_events", "wear_count", "last_worn_at", clothesIDs, date)
	if err != nil {
		return nil, err
	}
	return &models.SyncResult{Items: items, WearEvents: events}, nil
}

// RecordWash is the wash-side twin of RecordWear.
func (db *DB) RecordWash(ctx context.Context, clothesIDs []string, date string) (*models.SyncResult, error) {
	events, items, err := db.recordBatch(ctx, "wash_events", "wash_count", "last_washed_at", clothesIDs, date)
	if err != nil {
		return nil, err
	}
	washEvents := make([]models.WashEvent, len(events))
	for i, e := range events {
		washEvents[i] = models.WashEvent(e)
	}
	return &models.SyncResult{Items: items, WashEvents: washEvents}, nil
}

func (db *DB) recordBatch(ctx context.Context, table, counterCol, lastCol string, clothesIDs []string, date string) ([]models.WearEvent, []models.Item, error) {
	if len(clothesIDs) == 0 {
		return nil, nil, fmt.Errorf("clothesIds is empty")
	}
	if date == "" {
		date = time.Now().Format(models.DateLayout)
	}
	day, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	events := make([]models.WearEvent, 0, len(clothesIDs))
	for _, itemID := range clothesIDs {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM items WHERE id = ?`, itemID).Scan(&exists); err != nil {
			return nil, nil, fmt.Errorf("failed to check item: %w", err)
		}
		if exists == 0 {
			return nil, nil, fmt.Errorf("unknown item: %s", itemID)
		}

		event := models.WearEvent{
			ID:        uuid.NewString(),
			ItemID:    itemID,
			Date:      date,
			CreatedAt: now,
		}
		insert := fmt.Sprintf(`INSERT INTO %s (id, item_id, date, created_at) VALUES (?, ?, ?, ?)`, table)
		if _, err := tx.ExecContext(ctx, insert, event.ID, event.ItemID, event.Date, event.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("failed to insert event: %w", err)
		}

		update := fmt.Sprintf(`UPDATE items SET %s = %s + 1, %s = ?, updated_at = ? WHERE id = ?`,
			counterCol, counterCol, lastCol)
		if _, err := tx.ExecContext(ctx, update, day, now, itemID); err != nil {
			return nil, nil, fmt.Errorf("failed to update counters: %w", err)
		}

		events = append(events, event)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit: %w", err)
	}

	items, err := db.GetItemsByIDs(ctx, clothesIDs)
	if err != nil {
		return nil, nil, err
	}
	return events, items, nil
}

// GetWearEvents returns wear events between two dates inclusive.
func (db *DB) GetWearEvents(ctx context.Context, from, to string) ([]models.WearEvent, error) {
	return db.queryEvents(ctx, "wear_events", from, to)
}

// GetWashEvents returns wash events between two dates inclusive.
func (db *DB) GetWashEvents(ctx context.Context, from, to string) ([]models.WashEvent, error) {
	events, err := db.queryEvents(ctx, "wash_events", from, to)
	if err != nil {
		return nil, err
	}
	washEvents := make([]models.WashEvent, len(events))
	for i, e := range events {
		washEvents[i] = models.WashEvent(e)
	}
	return washEvents, nil
}

func (db *DB) queryEvents(ctx context.Context, table, from, to string) ([]models.WearEvent, error) {
	query := fmt.Sprintf(`SELECT id, item_id, date, created_at FROM %s
        WHERE date >= ? AND date <= ? ORDER BY date, created_at`, table)
	rows, err := db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.WearEvent
	for rows.Next() {
		var e models.WearEvent
		if err := rows.Scan(&e.ID, &e.ItemID, &e.Date, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
