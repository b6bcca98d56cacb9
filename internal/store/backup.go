package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrBackupUnsupported is returned by backends without file backups
var ErrBackupUnsupported = errors.New("store: backup not supported by this driver")

const backupPrefix = "limitup_"

// Backuper is implemented by stores that can snapshot themselves to a file
type Backuper interface {
	Backup(ctx context.Context, dir string, keep int, now time.Time) (string, error)
}

// Backup snapshots st into dir when its backend supports it
func Backup(ctx context.Context, st Store, dir string, keep int, now time.Time) (string, error) {
	for {
		if b, ok := st.(Backuper); ok {
			return b.Backup(ctx, dir, keep, now)
		}
		r, ok := st.(*Retrying)
		if !ok {
			return "", ErrBackupUnsupported
		}
		st = r.Unwrap()
	}
}

// Backup writes a consistent copy with VACUUM INTO, verifies it and keeps the newest keep files
func (s *SQLStore) Backup(ctx context.Context, dir string, keep int, now time.Time) (string, error) {
	if s.b.Name() != "sqlite" {
		return "", ErrBackupUnsupported
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	path := filepath.Join(dir, backupPrefix+now.Format("20060102_150405")+".db")

	err := s.write("backup", func() error {
		_, err := s.b.Exec(ctx, fmt.Sprintf("VACUUM INTO '%s'", strings.ReplaceAll(path, "'", "''")))
		return err
	})
	if err != nil {
		return "", err
	}

	if err := verifyBackup(ctx, path); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("backup verification failed: %w", err)
	}

	removed, err := rotateBackups(dir, keep)
	if err != nil {
		// 백업 자체는 성공
		s.logger.WithError(err).Warn("Failed to rotate backups")
	}

	s.logger.WithFields(map[string]interface{}{
		"path":    path,
		"removed": removed,
	}).Info("Store backup completed")
	return path, nil
}

func verifyBackup(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check: %s", result)
	}
	return nil
}

// rotateBackups removes all but the newest keep backups (names sort by time)
func rotateBackups(dir string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, backupPrefix+"*.db"))
	if err != nil {
		return 0, err
	}
	if len(matches) <= keep {
		return 0, nil
	}
	sort.Strings(matches)

	removed := 0
	for _, p := range matches[:len(matches)-keep] {
		if err := os.Remove(p); err != nil {
			return removed, fmt.Errorf("remove %s: %w", p, err)
		}
		removed++
	}
	return removed, nil
}
