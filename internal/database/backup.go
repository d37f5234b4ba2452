package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"waitline/internal/config"

	"github.com/rs/zerolog"

	_ "github.com/mattn/go-sqlite3"
)

type BackupService struct {
	dbPath string
	config config.BackupConfig
	logger *zerolog.Logger
}

func NewBackupService(dbPath string, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	return &BackupService{dbPath: dbPath, config: cfg, logger: logger}
}

// Start runs periodic backups until ctx is canceled. The first backup runs
// immediately.
func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("backup service is disabled")
		return
	}

	interval := 24 * time.Hour
	if s.config.Schedule != "" {
		if d, err := time.ParseDuration(s.config.Schedule); err == nil {
			interval = d
		} else {
			s.logger.Warn().Err(err).Str("schedule", s.config.Schedule).Msg("failed to parse backup schedule, using default 24h")
		}
	}

	s.logger.Info().Dur("interval", interval).Msg("backup service started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.PerformBackup(); err != nil {
		s.logger.Error().Err(err).Msg("initial backup failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.PerformBackup(); err != nil {
				s.logger.Error().Err(err).Msg("scheduled backup failed")
			}
			s.CleanupOldBackups()
		}
	}
}

func (s *BackupService) PerformBackup() error {
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	backupPath := filepath.Join(s.config.StoragePath, fmt.Sprintf("backup_%s.db", timestamp))

	db, err := sql.Open("sqlite3", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer db.Close()

	// VACUUM INTO is a safe online backup
	if _, err := db.Exec(fmt.Sprintf("VACUUM INTO '%s'", backupPath)); err != nil {
		s.logger.Warn().Err(err).Msg("VACUUM INTO failed, falling back to file copy")
		return s.performBackupFallback(backupPath)
	}

	s.logger.Info().Str("path", backupPath).Msg("backup completed")
	return nil
}

func (s *BackupService) performBackupFallback(backupPath string) error {
	source, err := os.Open(s.dbPath)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.Create(backupPath)
	if err != nil {
		return err
	}
	defer destination.Close()

	// Not atomic for SQLite; may produce a corrupted copy if writes occur
	if _, err := io.Copy(destination, source); err != nil {
		return err
	}

	s.logger.Info().Str("path", backupPath).Msg("fallback backup completed")
	return nil
}

func (s *BackupService) CleanupOldBackups() {
	if s.config.RetentionDays <= 0 {
		return
	}

	files, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read backup directory for cleanup")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)

	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), "backup_") {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(s.config.StoragePath, file.Name())
			if err := os.Remove(path); err != nil {
				s.logger.Error().Err(err).Str("path", path).Msg("failed to remove old backup")
			} else {
				s.logger.Info().Str("path", path).Msg("removed old backup")
			}
		}
	}
}
