package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CreatesAndMigrates(t *testing.T) {
	dir := t.TempDir()
	db, err := New(Config{
		Path:    filepath.Join(dir, "snapshots.db"),
		Profile: ProfileSnapshot,
		Name:    "snapshots",
	})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "snapshots", db.Name())

	err = db.Migrate(context.Background())
	require.NoError(t, err)

	_, err = db.Conn().Exec(
		"INSERT INTO window_snapshots (ticker, window_end, payload, written_at) VALUES (?, ?, ?, ?)",
		"AAPL", 1000, []byte("payload"), 2000,
	)
	require.NoError(t, err)

	var count int
	err = db.Conn().QueryRow("SELECT COUNT(*) FROM window_snapshots").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBuildConnectionString_ProfileVariants(t *testing.T) {
	snapshot := buildConnectionString("/tmp/a.db", ProfileSnapshot)
	cache := buildConnectionString("/tmp/b.db", ProfileCache)

	assert.Contains(t, snapshot, "synchronous(FULL)")
	assert.Contains(t, cache, "synchronous(OFF)")
	assert.Contains(t, cache, "temp_store(MEMORY)")
}
