package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLite wraps a database/sql handle on a modernc SQLite file
// ⭐ SSOT: SQLite 연결은 이 함수에서만 생성
type SQLite struct {
	Conn *sql.DB
	Path string
}

// OpenSQLite opens (and creates if missing) a SQLite database in WAL mode.
// ":memory:" is accepted for tests and pins the pool to one connection.
func OpenSQLite(path string) (*SQLite, error) {
	inMemory := path == ":memory:" || strings.Contains(path, "mode=memory")

	if !inMemory {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve sqlite path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
		path = absPath
	}

	conn, err := sql.Open("sqlite", buildSQLiteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}

	if inMemory {
		// 각 커넥션이 별도 DB가 되므로 1개로 고정
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(8)
		conn.SetMaxIdleConns(2)
		conn.SetConnMaxIdleTime(30 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping sqlite %s: %w", path, err)
	}

	return &SQLite{Conn: conn, Path: path}, nil
}

func buildSQLiteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_pragma=journal_mode(WAL)"
	dsn += "&_pragma=synchronous(NORMAL)"
	dsn += "&_pragma=foreign_keys(1)"
	dsn += "&_pragma=busy_timeout(5000)"
	return dsn
}

// Close closes the underlying handle
func (s *SQLite) Close() error {
	if s.Conn == nil {
		return nil
	}
	return s.Conn.Close()
}

// Ping checks if the database is accessible
func (s *SQLite) Ping(ctx context.Context) error {
	return s.Conn.PingContext(ctx)
}

// Health pings the handle and reports database/sql pool counts
func (s *SQLite) Health(ctx context.Context) Health {
	h := checkHealth(ctx, "sqlite", s.Conn.PingContext)
	stats := s.Conn.Stats()
	h.OpenConns = stats.OpenConnections
	h.InUse = stats.InUse
	h.Idle = stats.Idle
	return h
}
