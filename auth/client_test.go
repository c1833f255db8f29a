package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/studycore/core/retry"
	"github.com/kochabx/studycore/errors"
)

func TestClientRetry(t *testing.T) {
	ctx := context.Background()
	p := newIDP(t)

	var calls atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/flaky":
			if n == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"success":true,"data":{"ok":1}}`))
		case "/denied":
			w.WriteHeader(http.StatusUnauthorized)
		case "/bad":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"success":false,"error":"invalid payload"}`))
		case "/soft":
			_, _ = w.Write([]byte(`{"success":false,"error":"not allowed"}`))
		}
	}))
	t.Cleanup(api.Close)

	newClient := func(store *memSessions) *Client {
		m := NewManager(Config{APIBase: api.URL, TokenURL: p.URL + "/oauth/token"}, store)
		return NewClient(m, WithRetry(3, retry.NoRetry{}))
	}
	session := func() *memSessions {
		return &memSessions{sess: &Session{AccessToken: "at", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour).UnixMilli()}}
	}

	t.Run("5xx 重试", func(t *testing.T) {
		calls.Store(0)
		var out struct{ OK int }
		require.NoError(t, newClient(session()).Post(ctx, "/flaky", map[string]int{"a": 1}, &out))
		assert.Equal(t, 1, out.OK)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("401 不重试并丢弃会话", func(t *testing.T) {
		calls.Store(0)
		store := session()
		err := newClient(store).Get(ctx, "/denied", nil)
		assert.ErrorIs(t, err, ErrLoginRequired)
		assert.Equal(t, int32(1), calls.Load())
		assert.Nil(t, store.sess)
	})

	t.Run("4xx 不重试", func(t *testing.T) {
		calls.Store(0)
		err := newClient(session()).Get(ctx, "/bad", nil)
		assert.Equal(t, 400, errors.Code(err))
		assert.Contains(t, err.Error(), "invalid payload")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("业务失败", func(t *testing.T) {
		calls.Store(0)
		err := newClient(session()).Get(ctx, "/soft", nil)
		assert.Equal(t, 422, errors.Code(err))
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("无会话", func(t *testing.T) {
		calls.Store(0)
		err := newClient(&memSessions{}).Get(ctx, "/flaky", nil)
		assert.ErrorIs(t, err, ErrLoginRequired)
		assert.Zero(t, calls.Load())
	})
}

func TestClientNetworkFailureRetried(t *testing.T) {
	ctx := context.Background()
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	store := &memSessions{sess: &Session{AccessToken: "at", ExpiresAt: time.Now().Add(time.Hour).UnixMilli()}}
	m := NewManager(Config{APIBase: dead.URL}, store)

	var retries atomic.Int32
	c := NewClient(m, WithRetry(3, retry.NoRetry{}))
	c.policy.OnRetry = func(int, time.Duration, error) { retries.Add(1) }

	err := c.Get(ctx, "/anything", nil)
	assert.Equal(t, errors.ReasonNetworkFailure, errors.Reason(err))
	assert.Equal(t, int32(2), retries.Load())
	assert.NotNil(t, store.sess)
}

func TestConcurrentRefreshSingleFlight(t *testing.T) {
	ctx := context.Background()
	p := newIDP(t)
	p.refreshWait = 100 * time.Millisecond

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Envelope{Success: true})
	}))
	t.Cleanup(api.Close)

	store := &memSessions{sess: &Session{AccessToken: "stale", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Minute).UnixMilli()}}
	m := NewManager(Config{APIBase: p.URL}, store)
	c := NewClient(m, WithRetry(1, retry.NoRetry{}))

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			assert.NoError(t, c.Get(ctx, api.URL+"/data", nil))
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), p.refreshes.Load())
	assert.NotEqual(t, "stale", store.sess.AccessToken)
}
