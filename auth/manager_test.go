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
)

type memSessions struct {
	mu   sync.Mutex
	sess *Session
}

func (m *memSessions) Load(context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil, nil
	}
	cp := *m.sess
	return &cp, nil
}

func (m *memSessions) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sess = &cp
	return nil
}

func (m *memSessions) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	return nil
}

type idp struct {
	*httptest.Server
	t           *testing.T
	refreshes   atomic.Int32
	logouts     atomic.Int32
	refreshErr  string
	rotate      bool
	refreshWait time.Duration
	lastForm    chan map[string][]string
}

func newIDP(t *testing.T) *idp {
	p := &idp{t: t, lastForm: make(chan map[string][]string, 16)}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		p.lastForm <- r.PostForm
		if r.PostForm.Get("code") == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		p.writeTokens(w, "refresh-1")
	})
	mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		p.lastForm <- r.PostForm
		p.refreshes.Add(1)
		time.Sleep(p.refreshWait)
		if p.refreshErr != "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": p.refreshErr})
			return
		}
		rt := ""
		if p.rotate {
			rt = "refresh-2"
		}
		p.writeTokens(w, rt)
	})
	mux.HandleFunc("POST /api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		p.logouts.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Close)
	return p
}

func (p *idp) writeTokens(w http.ResponseWriter, refresh string) {
	body := map[string]any{
		"access_token": mint(p.t, claimsAt(time.Now(), time.Hour)),
		"expires_in":   3600,
		"token_type":   "Bearer",
	}
	if refresh != "" {
		body["refresh_token"] = refresh
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func newTestManager(t *testing.T, p *idp, store SessionStore, opts ...Option) *Manager {
	return NewManager(Config{
		APIBase:     p.URL,
		TokenURL:    p.URL + "/oauth/token",
		ClientID:    "studycore-web",
		RedirectURI: "http://localhost/callback",
		TenantID:    "tenant-a",
	}, store, opts...)
}

func TestExchangeCodeForTokens(t *testing.T) {
	ctx := context.Background()
	p := newIDP(t)
	store := &memSessions{}
	m := newTestManager(t, p, store)

	tokens, err := m.ExchangeCodeForTokens(ctx, ExchangeRequest{Code: "abc", CodeVerifier: "verifier"})
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", tokens.RefreshToken)
	assert.Equal(t, int64(3600), tokens.ExpiresIn)
	assert.Equal(t, User{ID: "user-1", TenantID: "tenant-a", Email: "a@example.com"}, tokens.User)

	form := <-p.lastForm
	assert.Equal(t, "authorization_code", form["grant_type"][0])
	assert.Equal(t, "verifier", form["code_verifier"][0])
	assert.Equal(t, "http://localhost/callback", form["redirect_uri"][0])

	view, err := m.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.False(t, view.NeedsRefresh)
	assert.Equal(t, tokens.AccessToken, view.AccessToken)

	_, err = m.ExchangeCodeForTokens(ctx, ExchangeRequest{Code: "bad"})
	assert.Error(t, err)
}

func TestSessionExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_750_000_000, 0)
	p := newIDP(t)

	tests := []struct {
		name    string
		expires time.Duration
		refresh string
		want    bool
		gone    bool
	}{
		{"四分钟后过期", 4 * time.Minute, "r", true, false},
		{"十分钟后过期", 10 * time.Minute, "r", false, false},
		{"已过期有刷新令牌", -time.Minute, "r", true, false},
		{"已过期无刷新令牌", -time.Minute, "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memSessions{sess: &Session{
				AccessToken:  "at",
				RefreshToken: tt.refresh,
				ExpiresAt:    now.Add(tt.expires).UnixMilli(),
			}}
			m := newTestManager(t, p, store, WithClock(func() time.Time { return now }))

			view, err := m.GetSession(ctx)
			require.NoError(t, err)
			if tt.gone {
				assert.Nil(t, view)
				assert.Nil(t, store.sess)
				return
			}
			require.NotNil(t, view)
			assert.Equal(t, tt.want, view.NeedsRefresh)
		})
	}
}

func TestRefreshAccessToken(t *testing.T) {
	ctx := context.Background()

	t.Run("保留旧刷新令牌", func(t *testing.T) {
		p := newIDP(t)
		store := &memSessions{sess: &Session{AccessToken: "old", RefreshToken: "keep-me", ExpiresAt: time.Now().UnixMilli()}}
		m := newTestManager(t, p, store)

		tokens, err := m.RefreshAccessToken(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, "old", store.sess.AccessToken)
		assert.Equal(t, "keep-me", store.sess.RefreshToken)
		assert.Equal(t, "keep-me", tokens.RefreshToken)

		form := <-p.lastForm
		assert.Equal(t, "refresh_token", form["grant_type"][0])
		assert.Equal(t, "keep-me", form["refresh_token"][0])
	})

	t.Run("轮换刷新令牌", func(t *testing.T) {
		p := newIDP(t)
		p.rotate = true
		store := &memSessions{sess: &Session{AccessToken: "old", RefreshToken: "r1"}}
		m := newTestManager(t, p, store)

		_, err := m.RefreshAccessToken(ctx)
		require.NoError(t, err)
		assert.Equal(t, "refresh-2", store.sess.RefreshToken)
	})

	for _, code := range []string{"invalid_grant", "invalid_token", "interaction_required", "login_required"} {
		t.Run(code, func(t *testing.T) {
			p := newIDP(t)
			p.refreshErr = code
			store := &memSessions{sess: &Session{AccessToken: "old", RefreshToken: "r1"}}
			m := newTestManager(t, p, store)

			_, err := m.RefreshAccessToken(ctx)
			var rerr *RefreshError
			require.ErrorAs(t, err, &rerr)
			assert.True(t, rerr.RequiresLogin)
			assert.ErrorIs(t, err, ErrLoginRequired)
			assert.Nil(t, store.sess)
		})
	}

	t.Run("其他错误保留会话", func(t *testing.T) {
		p := newIDP(t)
		p.refreshErr = "temporarily_unavailable"
		store := &memSessions{sess: &Session{AccessToken: "old", RefreshToken: "r1"}}
		m := newTestManager(t, p, store)

		_, err := m.RefreshAccessToken(ctx)
		var rerr *RefreshError
		require.ErrorAs(t, err, &rerr)
		assert.False(t, rerr.RequiresLogin)
		assert.NotNil(t, store.sess)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	p := newIDP(t)
	store := &memSessions{sess: &Session{AccessToken: "at", ExpiresAt: time.Now().Add(time.Hour).UnixMilli()}}
	m := newTestManager(t, p, store)

	require.NoError(t, m.Logout(ctx))
	assert.Equal(t, int32(1), p.logouts.Load())
	assert.Nil(t, store.sess)

	p.Close()
	store.sess = &Session{AccessToken: "at"}
	require.NoError(t, m.Logout(ctx))
	assert.Nil(t, store.sess)
}
