package database

import (
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"testing"

	"waitline/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	logger := zerolog.New(io.Discard)
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "source.db")
	storagePath := filepath.Join(tempDir, "backups")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE test (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)
	db.Close()

	cfg := config.BackupConfig{Enabled: true, StoragePath: storagePath}
	s := NewBackupService(dbPath, cfg, &logger)

	t.Run("PerformBackup", func(t *testing.T) {
		require.NoError(t, s.PerformBackup())

		files, err := os.ReadDir(storagePath)
		require.NoError(t, err)
		assert.NotEmpty(t, files)
	})

	t.Run("Fallback", func(t *testing.T) {
		backupPath := filepath.Join(storagePath, "fallback_test.db")
		require.NoError(t, os.MkdirAll(storagePath, 0o755))
		require.NoError(t, s.performBackupFallback(backupPath))

		_, err := os.Stat(backupPath)
		assert.NoError(t, err)
	})

	t.Run("CleanupKeepsRecent", func(t *testing.T) {
		s2 := NewBackupService(dbPath, config.BackupConfig{
			Enabled:       true,
			StoragePath:   storagePath,
			RetentionDays: 30,
		}, &logger)
		s2.CleanupOldBackups()

		files, err := os.ReadDir(storagePath)
		require.NoError(t, err)
		assert.NotEmpty(t, files)
	})
}
