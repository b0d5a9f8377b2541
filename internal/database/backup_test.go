package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"wearlog/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformBackup(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "wearlog.db")
	db, err := NewDB(dbPath)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.SeedItems(context.Background(), seedCatalog()))

	logger := zerolog.Nop()
	svc := NewBackupService(dbPath, config.BackupConfig{
		Enabled:     true,
		StoragePath: filepath.Join(dir, "backups"),
	}, &logger)

	require.NoError(t, svc.PerformBackup())

	files, err := os.ReadDir(filepath.Join(dir, "backups"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	// The snapshot must open as a valid database with the seeded rows.
	snapshot, err := NewDB(filepath.Join(dir, "backups", files[0].Name()))
	require.NoError(t, err)
	defer snapshot.Close()

	items, err := snapshot.GetActiveItems(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
}
