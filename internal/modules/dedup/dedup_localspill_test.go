package dedup

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marketintel/internal/database"
)

func newLocalSpillDB(t *testing.T) *database.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := database.New(database.Config{
		Path:    filepath.Join(dir, "spill.db"),
		Profile: database.ProfileCache,
		Name:    "spill",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestFlushBloom_WritesLocalSpill(t *testing.T) {
	spill := newLocalSpillDB(t)
	s := &Store{
		localSpill: spill,
		flushEveryN: 500,
		bloom:       bloom.NewWithEstimates(1000, 0.001),
		log:         zerolog.Nop(),
	}
	s.bloom.Add([]byte("url-hash-1"))

	require.NoError(t, s.FlushBloom(context.Background()))

	var count int
	err := spill.Conn().QueryRow("SELECT COUNT(*) FROM bloom_spill WHERE name = ?", bloomKVKey).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLoadLocalSpill_RecoversFilterContents(t *testing.T) {
	spill := newLocalSpillDB(t)
	s := &Store{
		localSpill: spill,
		flushEveryN: 500,
		bloom:       bloom.NewWithEstimates(1000, 0.001),
		log:         zerolog.Nop(),
	}
	s.bloom.Add([]byte("already-seen"))
	require.NoError(t, s.FlushBloom(context.Background()))

	recovered, err := s.loadLocalSpill(context.Background())
	require.NoError(t, err)
	require.NotNil(t, recovered)
	assert.True(t, recovered.Test([]byte("already-seen")))
	assert.False(t, recovered.Test([]byte("never-seen")))
}

func TestLoadLocalSpill_ErrorsWhenEmpty(t *testing.T) {
	spill := newLocalSpillDB(t)
	s := &Store{localSpill: spill, log: zerolog.Nop()}

	_, err := s.loadLocalSpill(context.Background())
	assert.Error(t, err)
}

func TestFlushBloom_OverwritesPreviousSpillRow(t *testing.T) {
	spill := newLocalSpillDB(t)
	s := &Store{
		localSpill: spill,
		flushEveryN: 500,
		bloom:       bloom.NewWithEstimates(1000, 0.001),
		log:         zerolog.Nop(),
	}

	s.bloom.Add([]byte("first"))
	require.NoError(t, s.FlushBloom(context.Background()))

	s.bloom.Add([]byte("second"))
	require.NoError(t, s.FlushBloom(context.Background()))

	var count int
	err := spill.Conn().QueryRow("SELECT COUNT(*) FROM bloom_spill").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "ON CONFLICT upsert should keep a single row per name")

	recovered, err := s.loadLocalSpill(context.Background())
	require.NoError(t, err)
	assert.True(t, recovered.Test([]byte("first")))
	assert.True(t, recovered.Test([]byte("second")))
}
