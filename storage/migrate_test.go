package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/kochabx/studycore/errors"
	"github.com/kochabx/studycore/store/kv"
)

func writeLegacy(t *testing.T, m map[string]any) string {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)
	p := filepath.Join(t.TempDir(), "localStorage.json")
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func dump(t *testing.T, s *kv.Store) map[string]string {
	t.Helper()
	recs, err := s.GetAll(context.Background())
	require.NoError(t, err)
	out := make(map[string]string, len(recs))
	for _, r := range recs {
		if r.Key == MigrationMarkerKey {
			continue
		}
		out[r.Key] = string(r.Value)
	}
	return out
}

func TestMigrationIdempotent(t *testing.T) {
	ctx := context.Background()
	path := writeLegacy(t, map[string]any{
		"confidenceLevels": `{"waves":4}`,
		"theme":            "dark",
		"streak":           "12",
	})
	store := newStore(t, nil)
	f := New(store, WithLegacySource(NewFileSource(path)))

	res := f.Init(ctx)
	require.True(t, res.Success)
	assert.Equal(t, 3, res.Migrated)
	assert.True(t, res.MigrationComplete)
	assert.Empty(t, res.Reason)

	first := dump(t, store)
	assert.Equal(t, map[string]string{
		"confidenceLevels": `{"waves":4}`,
		"streak":           `12`,
		"theme":            `"dark"`,
	}, first)

	// marker present: nothing is migrated again
	res = f.Init(ctx)
	assert.Equal(t, 0, res.Migrated)
	assert.True(t, res.MigrationComplete)

	// marker lost: re-running yields the same contents
	require.NoError(t, store.Remove(ctx, MigrationMarkerKey))
	res = f.Init(ctx)
	assert.Equal(t, 3, res.Migrated)
	assert.Equal(t, first, dump(t, store))
}

type flakySource struct {
	data map[string]string
	bad  string
}

func (s *flakySource) Keys(context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *flakySource) Get(_ context.Context, key string) (string, error) {
	if key == s.bad {
		return "", errors.New("corrupted entry")
	}
	return s.data[key], nil
}

func (s *flakySource) Clear(context.Context) error {
	s.data = nil
	return nil
}

func TestMigrationPartialFailure(t *testing.T) {
	ctx := context.Background()
	src := &flakySource{
		data: map[string]string{"a": "1", "b": "2", "c": "3"},
		bad:  "b",
	}
	store := newStore(t, nil)
	f := New(store, WithLegacySource(src))

	res := f.Init(ctx)
	require.True(t, res.Success)
	assert.Equal(t, 2, res.Migrated)
	assert.Equal(t, []string{"b"}, res.Failed)
	assert.Equal(t, kerrors.ReasonMigrationPartialFailure, res.Reason)
	assert.True(t, res.MigrationComplete)

	raw, err := store.GetRaw(ctx, MigrationMarkerKey)
	require.NoError(t, err)
	assert.NotNil(t, raw)
}

func TestMigrationNoLegacyData(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, nil)
	f := New(store, WithLegacySource(NewFileSource(filepath.Join(t.TempDir(), "absent.json"))))

	res := f.Init(ctx)
	require.True(t, res.Success)
	assert.False(t, res.MigrationComplete)

	keys, err := store.GetAllKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestFileSource(t *testing.T) {
	ctx := context.Background()
	path := writeLegacy(t, map[string]any{"s": "text", "n": 5, "o": map[string]int{"x": 1}})
	src := NewFileSource(path)

	keys, err := src.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"n", "o", "s"}, keys)

	tests := []struct {
		key  string
		want string
	}{
		{"s", "text"},
		{"n", "5"},
		{"o", `{"x":1}`},
	}
	for _, tt := range tests {
		got, err := src.Get(ctx, tt.key)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err = src.Get(ctx, "missing")
	assert.Error(t, err)
	require.NoError(t, src.Clear(ctx))
	require.NoError(t, src.Clear(ctx))
}

func TestMigrationSplitsAnalytics(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	old := now.Add(-45 * 24 * time.Hour)
	path := writeLegacy(t, map[string]any{
		LegacyAnalyticsKey: fmt.Sprintf(`[{"type":"quiz","at":%q},{"type":"quiz","timestamp":%d}]`,
			old.Format(time.RFC3339Nano), now.Add(-time.Hour).UnixMilli()),
	})
	store := newStore(t, nil)
	f := New(store, WithLegacySource(NewFileSource(path)), WithClock(func() time.Time { return now }))

	res := f.Init(ctx)
	require.True(t, res.Success)
	assert.Equal(t, 1, res.Migrated)

	keys, err := store.GetAllKeys(ctx)
	require.NoError(t, err)
	assert.NotContains(t, keys, LegacyAnalyticsKey)

	stores := NewStores(f)
	events, err := stores.Events(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 2)

	// re-running keeps the same records
	require.NoError(t, store.Remove(ctx, MigrationMarkerKey))
	f.Init(ctx)
	events, err = stores.Events(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 2)

	n, err := f.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
