package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	khttp "github.com/kochabx/studycore/core/net/http"
	"github.com/kochabx/studycore/errors"
	"github.com/kochabx/studycore/log"
)

// TokenSet is the normalized result of a token grant.
type TokenSet struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn"`
	User         User   `json:"user"`
}

type ExchangeRequest struct {
	Code         string
	CodeVerifier string
	// RedirectURI overrides the configured one.
	RedirectURI string
}

// Manager owns the session: it is the only writer of session records.
type Manager struct {
	cfg    Config
	http   *khttp.Client
	store  SessionStore
	logger *log.Logger
	now    func() time.Time

	mu      sync.Mutex
	refresh singleflight.Group
}

type Option func(*Manager)

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithHTTPClient sets the client used for token and logout requests.
func WithHTTPClient(c *khttp.Client) Option {
	return func(m *Manager) {
		if c != nil {
			m.http = c
		}
	}
}

func NewManager(cfg Config, store SessionStore, opts ...Option) *Manager {
	_ = cfg.Init()
	m := &Manager{
		cfg:    cfg,
		store:  store,
		logger: log.G,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.http == nil {
		m.http = khttp.New(khttp.WithBaseURL(cfg.APIBase), khttp.WithTimeout(cfg.RequestTimeout))
	}
	return m
}

// ExchangeCodeForTokens runs the authorization code grant and stores the
// resulting session.
func (m *Manager) ExchangeCodeForTokens(ctx context.Context, req ExchangeRequest) (*TokenSet, error) {
	redirect := req.RedirectURI
	if redirect == "" {
		redirect = m.cfg.RedirectURI
	}
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {req.Code},
		"redirect_uri":  {redirect},
		"client_id":     {m.cfg.ClientID},
		"code_verifier": {req.CodeVerifier},
	}

	tokens, oauthErr, err := m.grant(ctx, m.cfg.TokenURL, form)
	if err != nil {
		return nil, err
	}
	if oauthErr != "" {
		return nil, errors.Unauthorized("code exchange rejected: %s", oauthErr)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	sess := &Session{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(tokens.ExpiresIn) * time.Second).UnixMilli(),
		User:         tokens.User,
		CreatedAt:    now.UnixMilli(),
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("auth: save session: %w", err)
	}
	m.logger.Info().Str("user", tokens.User.ID).Int64("expires_in", tokens.ExpiresIn).Msg("signed in")
	return tokens, nil
}

// RefreshAccessToken runs the refresh token grant. A rejected refresh token
// discards the session and returns a RefreshError with RequiresLogin set.
func (m *Manager) RefreshAccessToken(ctx context.Context) (*TokenSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: load session: %w", err)
	}
	if sess == nil {
		return nil, ErrNoSession
	}
	if sess.RefreshToken == "" {
		m.discardLocked(ctx, "no refresh token")
		return nil, &RefreshError{RequiresLogin: true, Code: "no_refresh_token"}
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {sess.RefreshToken},
		"client_id":     {m.cfg.ClientID},
	}
	tokens, oauthErr, err := m.grant(ctx, m.cfg.RefreshPath, form)
	if err != nil {
		if errors.Code(err) == 401 {
			m.discardLocked(ctx, "refresh unauthorized")
			return nil, &RefreshError{RequiresLogin: true, Err: err}
		}
		return nil, &RefreshError{Err: err}
	}
	if oauthErr != "" {
		if loginCodes[oauthErr] {
			m.discardLocked(ctx, oauthErr)
			return nil, &RefreshError{RequiresLogin: true, Code: oauthErr}
		}
		return nil, &RefreshError{Code: oauthErr}
	}

	now := m.now()
	sess.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		sess.RefreshToken = tokens.RefreshToken
	} else {
		tokens.RefreshToken = sess.RefreshToken
	}
	sess.ExpiresAt = now.Add(time.Duration(tokens.ExpiresIn) * time.Second).UnixMilli()
	if tokens.User.ID != "" {
		sess.User = tokens.User
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("auth: save session: %w", err)
	}
	m.logger.Debug().Int64("expires_in", tokens.ExpiresIn).Msg("access token refreshed")
	return tokens, nil
}

// GetSession returns the current session or nil. Sessions within the
// refresh buffer of expiry are flagged NeedsRefresh; an expired session
// without a refresh token is discarded.
func (m *Manager) GetSession(ctx context.Context) (*SessionView, error) {
	sess, err := m.store.Load(ctx)
	if err != nil || sess == nil {
		return nil, err
	}

	remaining := sess.Expiry().Sub(m.now())
	if remaining <= 0 && sess.RefreshToken == "" {
		m.mu.Lock()
		m.discardLocked(ctx, "expired")
		m.mu.Unlock()
		return nil, nil
	}
	return &SessionView{
		Session:      *sess,
		ExpiresIn:    max(remaining, 0),
		NeedsRefresh: remaining <= m.cfg.RefreshBuffer,
	}, nil
}

// AccessToken returns a usable access token, refreshing it first when the
// session is close to expiry. Concurrent callers share one refresh.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	view, err := m.GetSession(ctx)
	if err != nil {
		return "", err
	}
	if view == nil {
		return "", ErrLoginRequired
	}
	if !view.NeedsRefresh {
		return view.AccessToken, nil
	}

	v, err, _ := m.refresh.Do("refresh", func() (any, error) {
		return m.RefreshAccessToken(ctx)
	})
	if err != nil {
		if errors.Is(err, ErrLoginRequired) || errors.Is(err, ErrNoSession) {
			return "", ErrLoginRequired
		}
		// still valid for a while; use it and refresh on the next call
		if view.ExpiresIn > 0 {
			m.logger.Warn().Err(err).Msg("refresh failed, using current token")
			return view.AccessToken, nil
		}
		return "", err
	}
	return v.(*TokenSet).AccessToken, nil
}

// Logout tells the server, best effort, then drops the local session.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("load session for logout failed")
	}
	if sess != nil && sess.AccessToken != "" {
		resp, err := m.http.Post(ctx, m.cfg.LogoutPath, nil, khttp.WithBearer(sess.AccessToken))
		switch {
		case err != nil:
			m.logger.Warn().Err(err).Msg("remote logout failed")
		case !resp.OK():
			m.logger.Warn().Int("status", resp.StatusCode).Msg("remote logout rejected")
		}
	}
	return m.discardLocked(ctx, "logout")
}

func (m *Manager) discardLocked(ctx context.Context, reason string) error {
	if err := m.store.Delete(ctx); err != nil {
		m.logger.Error().Err(err).Str("reason", reason).Msg("discard session failed")
		return err
	}
	m.logger.Info().Str("reason", reason).Msg("session discarded")
	return nil
}

// Discard drops the session without contacting the server.
func (m *Manager) Discard(ctx context.Context, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.discardLocked(ctx, reason)
}

type tokenPayload struct {
	AccessToken      string          `json:"access_token"`
	RefreshToken     string          `json:"refresh_token"`
	ExpiresIn        json.Number     `json:"expires_in"`
	AccessTokenC     string          `json:"accessToken"`
	RefreshTokenC    string          `json:"refreshToken"`
	ExpiresInC       json.Number     `json:"expiresIn"`
	User             *User           `json:"user"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Data             json.RawMessage `json:"data"`
}

// grant posts form to target. It returns the OAuth error code separately
// from transport and decoding errors.
func (m *Manager) grant(ctx context.Context, target string, form url.Values) (*TokenSet, string, error) {
	resp, err := m.http.PostForm(ctx, target, form)
	if err != nil {
		return nil, "", err
	}

	var p tokenPayload
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &p); err != nil && resp.OK() {
			return nil, "", errors.Wrap(err, 502, "decode token response")
		}
	}
	// {success, data} envelope of the remote API
	if len(p.Data) > 0 && p.Data[0] == '{' {
		var inner tokenPayload
		if err := json.Unmarshal(p.Data, &inner); err == nil {
			inner.Error = p.Error
			p = inner
		}
	}

	if p.Error != "" && (!resp.OK() || firstNonEmpty(p.AccessToken, p.AccessTokenC) == "") {
		code := strings.ToLower(p.Error)
		m.logger.Warn().Int("status", resp.StatusCode).Str("error", code).Str("description", p.ErrorDescription).Msg("token grant rejected")
		return nil, code, nil
	}
	if !resp.OK() {
		return nil, "", errors.New(resp.StatusCode, "token endpoint returned %d", resp.StatusCode)
	}

	tokens := &TokenSet{
		AccessToken:  firstNonEmpty(p.AccessToken, p.AccessTokenC),
		RefreshToken: firstNonEmpty(p.RefreshToken, p.RefreshTokenC),
	}
	claims, ok := validateAt(tokens.AccessToken, m.cfg.TenantID, m.now(), m.cfg.ClockSkew)
	if !ok {
		return nil, "", ErrInvalidToken
	}

	if n, err := firstNumber(p.ExpiresIn, p.ExpiresInC); err == nil && n > 0 {
		tokens.ExpiresIn = n
	} else {
		tokens.ExpiresIn = int64(claims.ExpiresAt.Time.Sub(m.now()).Seconds())
	}
	tokens.User = claims.user()
	if p.User != nil && p.User.ID != "" {
		tokens.User = *p.User
	}
	return tokens, "", nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNumber(vals ...json.Number) (int64, error) {
	for _, v := range vals {
		if v != "" {
			return v.Int64()
		}
	}
	return 0, fmt.Errorf("auth: expires_in missing")
}
