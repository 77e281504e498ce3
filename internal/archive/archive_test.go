package archive

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronomap/internal/mapstate"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openTemp(t)

	y1000 := mapstate.AreaSnapshot{
		"p1": {Ruler: "r1", Culture: "c1", Religion: "catholicism", Capital: "cap1", Population: 1000},
		"p2": {Ruler: "r2", Culture: "c1", Religion: "sunni"},
	}
	require.NoError(t, db.SaveArea(ctx, 1000, y1000))
	require.NoError(t, db.SaveArea(ctx, -300, mapstate.AreaSnapshot{"p9": {Ruler: "rome"}}))

	got, ok, err := db.LoadArea(ctx, 1000)
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(y1000, got); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}

	_, ok, err = db.LoadArea(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	years, err := db.Years(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{-300, 1000}, years)

	all, err := db.LoadAreas(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "rome", all[-300]["p9"].Ruler)
}

func TestSaveReplaces(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openTemp(t)

	require.NoError(t, db.SaveArea(ctx, 1000, mapstate.AreaSnapshot{"p1": {Ruler: "old"}}))
	require.NoError(t, db.SaveArea(ctx, 1000, mapstate.AreaSnapshot{"p1": {Ruler: "new"}, "p2": {}}))

	got, ok, err := db.LoadArea(ctx, 1000)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", got["p1"].Ruler)
	assert.Len(t, got, 2)

	years, err := db.Years(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1000}, years)
}

func TestReopenKeepsData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "archive.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.SaveArea(ctx, 800, mapstate.AreaSnapshot{"p1": {Ruler: "franks"}}))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	all, err := db.LoadAreas(ctx)
	require.NoError(t, err)
	assert.Equal(t, "franks", all[800]["p1"].Ruler)
}

func TestStorePreload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openTemp(t)
	require.NoError(t, db.SaveArea(ctx, 1453, mapstate.AreaSnapshot{"p1": {Ruler: "ottomans"}}))

	s := mapstate.New(nil, mapstate.WithArchive(db))
	n, err := s.PreloadArchive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int{1453}, s.CachedYears())

	snap, err := s.LoadAreaData(ctx, 1453)
	require.NoError(t, err, "cache hit needs no getter")
	assert.Equal(t, "ottomans", snap["p1"].Ruler)
}
