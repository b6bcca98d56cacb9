package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Ping(context.Background()))

	_, err = db.Conn.Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)
	_, err = db.Conn.Exec(`INSERT INTO t (v) VALUES ('a')`)
	require.NoError(t, err)

	var n int
	require.NoError(t, db.Conn.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestOpenSQLiteFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "limitup.db")

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, path, db.Path)
	assert.FileExists(t, path)
}

func TestBuildSQLiteDSN(t *testing.T) {
	assert.Contains(t, buildSQLiteDSN("/tmp/a.db"), "/tmp/a.db?_pragma=journal_mode(WAL)")
	assert.Contains(t, buildSQLiteDSN("file:x?mode=memory"), "file:x?mode=memory&_pragma=")
}

func TestSQLiteHealth(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)

	h := db.Health(context.Background())
	assert.True(t, h.Healthy)
	assert.Equal(t, "sqlite", h.Driver)
	assert.Empty(t, h.Error)

	require.NoError(t, db.Close())
	h = db.Health(context.Background())
	assert.False(t, h.Healthy)
	assert.NotEmpty(t, h.Error)
}
