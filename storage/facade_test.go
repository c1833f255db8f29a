package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/kochabx/studycore/errors"
	"github.com/kochabx/studycore/store/kv"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newStore(t *testing.T, cfg *kv.Config, opts ...kv.Option) *kv.Store {
	t.Helper()
	if cfg == nil {
		cfg = &kv.Config{}
	}
	cfg.SQLite.FilePath = filepath.Join(t.TempDir(), "studycore.db")
	s, err := kv.New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	f := New(newStore(t, nil))
	require.True(t, f.Init(ctx).Success)

	res := f.Save(ctx, "confidenceLevels", map[string]int{"waves": 3})
	require.True(t, res.Success)

	var got map[string]int
	lr := f.Load(ctx, "confidenceLevels", &got)
	require.True(t, lr.Success)
	assert.True(t, lr.Found)
	assert.Equal(t, 3, got["waves"])

	lr = f.Load(ctx, "missing", &got)
	assert.True(t, lr.Success)
	assert.False(t, lr.Found)

	assert.True(t, f.Remove(ctx, "confidenceLevels").Success)
	assert.False(t, f.Load(ctx, "confidenceLevels", nil).Found)
}

func TestSaveNonPlainData(t *testing.T) {
	ctx := context.Background()
	f := New(newStore(t, nil))

	res := f.Save(ctx, "bad", map[string]any{"ch": make(chan int)})
	assert.False(t, res.Success)
	assert.False(t, res.QuotaExceeded)
	assert.Equal(t, kerrors.ReasonWriteFailure, res.Reason)
	assert.Equal(t, kerrors.ReasonWriteFailure, kerrors.Reason(res.Err()))
}

func TestInitStoreUnavailable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	s, err := kv.New(&kv.Config{SQLite: kv.SQLiteConfig{FilePath: filepath.Join(blocker, "sub", "kv.db")}})
	require.NoError(t, err)

	res := New(s).Init(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, kerrors.ReasonStoreUnavailable, res.Reason)
}

func TestQuotaRecovery(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	clk := &clock{now: now.Add(-40 * 24 * time.Hour)}

	cfg := &kv.Config{}
	store := newStore(t, cfg, kv.WithClock(clk.Now))
	f := New(store, WithClock(func() time.Time { return now }))
	stores := NewStores(f)
	require.True(t, f.Init(ctx).Success)

	for i := 0; i < 20; i++ {
		require.NoError(t, stores.AppendEvent(ctx, AnalyticsEvent{
			Type:  "quiz_answered",
			At:    clk.Now().Add(time.Duration(i) * time.Minute),
			Value: float64(i),
			Meta:  map[string]string{"padding": strings.Repeat("x", 64)},
		}))
	}

	clk.Set(now.Add(-time.Hour))
	require.NoError(t, stores.AppendEvent(ctx, AnalyticsEvent{Type: "recent", At: clk.Now()}))
	require.NoError(t, stores.AppendEvent(ctx, AnalyticsEvent{Type: "recent", At: clk.Now().Add(time.Second)}))

	used, err := store.Usage(ctx)
	require.NoError(t, err)
	cfg.QuotaBytes = used + 256

	res := f.Save(ctx, PrefixNote+"big", Note{ID: "big", Content: strings.Repeat("n", 1024)})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, int64(20), res.Cleaned)

	events, err := stores.Events(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, "recent", ev.Type)
	}
	assert.True(t, f.Load(ctx, PrefixNote+"big", nil).Found)
}

func TestPruneByEventTime(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	f := New(newStore(t, nil), WithClock(func() time.Time { return now }))
	stores := NewStores(f)
	require.True(t, f.Init(ctx).Success)

	// written just now, but the events themselves are old
	require.NoError(t, stores.AppendEvent(ctx, AnalyticsEvent{Type: "old", At: now.Add(-40 * 24 * time.Hour)}))
	require.NoError(t, stores.AppendEvent(ctx, AnalyticsEvent{Type: "old", At: now.Add(-31 * 24 * time.Hour)}))
	require.NoError(t, stores.AppendEvent(ctx, AnalyticsEvent{Type: "recent", At: now.Add(-24 * time.Hour)}))
	require.True(t, f.Save(ctx, KeySettings, Settings{"theme": "dark"}).Success)

	n, err := f.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	events, err := stores.Events(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "recent", events[0].Type)
	assert.True(t, f.Load(ctx, KeySettings, nil).Found)
}

func TestKeyTime(t *testing.T) {
	tests := []struct {
		name string
		key  string
		ok   bool
	}{
		{"事件键", "analytics_history:1700000000000-abc", true},
		{"只有时间", "analytics_history:1700000000000", true},
		{"前缀不符", "notes:1700000000000-abc", false},
		{"非数字", "analytics_history:today-abc", false},
		{"位数不足", "analytics_history:17000-abc", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at, ok := keyTime(tt.key, PrefixAnalytics)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, int64(1700000000000), at.UnixMilli())
			}
		})
	}
}

func TestQuotaExceededAfterRecovery(t *testing.T) {
	ctx := context.Background()
	f := New(newStore(t, &kv.Config{QuotaBytes: 512}))

	res := f.Save(ctx, "huge", strings.Repeat("z", 2048))
	assert.False(t, res.Success)
	assert.True(t, res.QuotaExceeded)
	assert.Equal(t, kerrors.ReasonQuotaExceeded, res.Reason)
	assert.Equal(t, QuotaMessage, res.Message)
	assert.Zero(t, res.Cleaned)
	assert.False(t, f.Load(ctx, "huge", nil).Found)
}

func TestEstimateQuota(t *testing.T) {
	ctx := context.Background()

	t.Run("记录求和", func(t *testing.T) {
		f := New(newStore(t, &kv.Config{QuotaBytes: 1000}))
		require.True(t, f.Save(ctx, "k", "v").Success)

		est := f.EstimateQuota(ctx)
		assert.Equal(t, "records", est.Source)
		assert.Equal(t, int64(len("k")+len(`"v"`)), est.Usage)
		assert.Equal(t, int64(1000), est.Quota)
		assert.InDelta(t, 0.4, est.PercentUsed, 0.001)
	})

	t.Run("默认配额", func(t *testing.T) {
		f := New(newStore(t, nil))
		est := f.EstimateQuota(ctx)
		assert.Equal(t, int64(52428800), est.Quota)
	})

	t.Run("平台估算失败时回退", func(t *testing.T) {
		f := New(newStore(t, nil), WithQuotaEstimator(failingEstimator{}))
		assert.Equal(t, "records", f.EstimateQuota(ctx).Source)
	})
}

type failingEstimator struct{}

func (failingEstimator) Estimate(context.Context) (QuotaEstimate, error) {
	return QuotaEstimate{}, errors.New("no estimate")
}

type recordingCache struct {
	unregister bool
	err        error
}

func (c *recordingCache) ClearAll(_ context.Context, unregister bool) error {
	c.unregister = unregister
	return c.err
}

func TestClearAllStorage(t *testing.T) {
	ctx := context.Background()
	legacyPath := filepath.Join(t.TempDir(), "legacy.json")
	require.NoError(t, os.WriteFile(legacyPath, []byte(`{"a":"1"}`), 0o644))

	cache := &recordingCache{err: errors.New("cache locked")}
	f := New(newStore(t, nil), WithCacheClearer(cache), WithLegacySource(NewFileSource(legacyPath)))
	require.True(t, f.Save(ctx, "k", 1).Success)

	got := f.ClearAllStorage(ctx, true)
	assert.Equal(t, map[string]bool{"kv": true, "cache": false, "legacy": true}, got)
	assert.True(t, cache.unregister)

	keys, r := f.Keys(ctx)
	require.True(t, r.Success)
	assert.Empty(t, keys)
	_, err := os.Stat(legacyPath)
	assert.True(t, os.IsNotExist(err))
}

func TestLegacyValue(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want any
	}{
		{"对象", `{"a":1}`, json.RawMessage(`{"a":1}`)},
		{"数字", `42`, json.RawMessage(`42`)},
		{"纯文本", `hello`, "hello"},
		{"空串", ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, legacyValue(tt.in))
		})
	}
}
