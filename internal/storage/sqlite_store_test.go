package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denisok6893-rgb/building-insights/internal/domain"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := OpenSQLite(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.EnsureSchema())
	return st
}

func TestSQLiteStore_SnapshotRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	_, ok, err := st.GetSnapshot(ctx, "buildingFilters")
	require.NoError(t, err)
	assert.False(t, ok)

	saved, err := st.SaveSnapshot(ctx, domain.FilterSnapshot{
		Key:    "buildingFilters",
		Values: map[string]string{"area": "North", "minFloors": "4", "cluster": ""},
	})
	require.NoError(t, err)
	assert.False(t, saved.SavedAt.IsZero())

	got, ok, err := st.GetSnapshot(ctx, "buildingFilters")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, saved.Values, got.Values)
	assert.True(t, saved.SavedAt.Equal(got.SavedAt))

	// overwrite
	_, err = st.SaveSnapshot(ctx, domain.FilterSnapshot{
		Key:     "buildingFilters",
		Values:  map[string]string{"area": "South"},
		SavedAt: saved.SavedAt.Add(time.Second),
	})
	require.NoError(t, err)
	got, _, err = st.GetSnapshot(ctx, "buildingFilters")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"area": "South"}, got.Values)

	deleted, err := st.DeleteSnapshot(ctx, "buildingFilters")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = st.DeleteSnapshot(ctx, "buildingFilters")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSQLiteStore_ListSnapshotKeys(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, k := range []string{"a", "b", "c"} {
		_, err := st.SaveSnapshot(ctx, domain.FilterSnapshot{Key: k, SavedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	keys, err := st.ListSnapshotKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, keys)
}
