package database

import (
	"context"
	"path/filepath"
	"testing"

	"wearlog/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "wearlog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedCatalog() []models.Item {
	return []models.Item{
		{Name: "White tee", Category: "tops"},
		{Name: "Denim jacket", Category: "outerwear"},
	}
}

func seedWardrobe(t *testing.T, db *DB) []models.Item {
	t.Helper()
	ctx := context.Background()
	items := []models.Item{
		{Name: "Blue shirt", Category: "tops", Color: "blue", SortOrder: 1},
		{Name: "Black jeans", Category: "bottoms", Color: "black", SortOrder: 2},
		{Name: "Gray hoodie", Category: "tops", Color: "gray", SortOrder: 3},
	}
	require.NoError(t, db.SeedItems(ctx, items))

	active, err := db.GetActiveItems(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	return active
}

func TestSeedItemsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	items := seedWardrobe(t, db)

	// Re-seeding must not duplicate or reset existing rows.
	_, err := db.RecordWear(ctx, []string{items[0].ID}, "2026-08-01")
	require.NoError(t, err)
	require.NoError(t, db.SeedItems(ctx, []models.Item{{Name: "Blue shirt", Category: "tops"}}))

	got, err := db.GetItemByName(ctx, "Blue shirt")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.WearCount)

	active, err := db.GetActiveItems(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 3)
}

func TestRecordWearUpdatesCounters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	items := seedWardrobe(t, db)

	res, err := db.RecordWear(ctx, []string{items[0].ID, items[1].ID}, "2026-08-20")
	require.NoError(t, err)

	require.Len(t, res.WearEvents, 2)
	require.Len(t, res.Items, 2)
	assert.Equal(t, int64(1), res.Items[0].WearCount)
	require.NotNil(t, res.Items[0].LastWornAt)
	assert.Equal(t, "2026-08-20", res.WearEvents[0].Date)
	assert.Equal(t, items[0].ID, res.WearEvents[0].ItemID)
	assert.Empty(t, res.WashEvents)

	// Second wear on another day keeps counting.
	res, err = db.RecordWear(ctx, []string{items[0].ID}, "2026-08-21")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Items[0].WearCount)
}

func TestRecordWashUpdatesCounters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	items := seedWardrobe(t, db)

	res, err := db.RecordWash(ctx, []string{items[2].ID}, "")
	require.NoError(t, err)
	require.Len(t, res.WashEvents, 1)
	assert.Equal(t, int64(1), res.Items[0].WashCount)
	assert.Zero(t, res.Items[0].WearCount)
	assert.NotEmpty(t, res.WashEvents[0].Date, "empty date defaults to today")
}

func TestRecordWearUnknownItemRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	items := seedWardrobe(t, db)

	_, err := db.RecordWear(ctx, []string{items[0].ID, "missing"}, "2026-08-20")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown item")

	// The whole batch rolls back, including the valid first entry.
	got, err := db.GetItemByID(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Zero(t, got.WearCount)

	events, err := db.GetWearEvents(ctx, "2026-08-20", "2026-08-20")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRecordWearRejectsBadInput(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	items := seedWardrobe(t, db)

	_, err := db.RecordWear(ctx, nil, "")
	require.Error(t, err)

	_, err = db.RecordWear(ctx, []string{items[0].ID}, "20-08-2026")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid date")
}

func TestGetWearEventsRange(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	items := seedWardrobe(t, db)

	for _, date := range []string{"2026-08-01", "2026-08-05", "2026-08-10"} {
		_, err := db.RecordWear(ctx, []string{items[0].ID}, date)
		require.NoError(t, err)
	}

	events, err := db.GetWearEvents(ctx, "2026-08-02", "2026-08-10")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "2026-08-05", events[0].Date)
	assert.Equal(t, "2026-08-10", events[1].Date)
}

func TestItemCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	item := &models.Item{Name: "Red scarf", Category: "accessories", Color: "red", IsActive: true}
	require.NoError(t, db.CreateItem(ctx, item))
	require.NotEmpty(t, item.ID)

	item.Color = "crimson"
	require.NoError(t, db.UpdateItem(ctx, item))

	got, err := db.GetItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "crimson", got.Color)

	require.NoError(t, db.DeactivateItem(ctx, item.ID))
	active, err := db.GetActiveItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.Error(t, db.DeactivateItem(ctx, "missing"))
}
