package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kochabx/studycore/log"
)

const maxBodySize = 32 << 20

// Manager serves app assets from versioned cache generations.
//
// A new generation is installed next to the active one and only takes over
// on SkipWaiting, so a client in the middle of a session keeps a consistent
// set of assets.
type Manager struct {
	cfg       Config
	upstream  *url.URL
	store     GenerationStore
	transport http.RoundTripper
	client    *http.Client
	proxy     *httputil.ReverseProxy
	notifier  Notifier
	logger    *log.Logger
	now       func() time.Time

	mu         sync.RWMutex
	active     *Generation
	waiting    *Generation
	registered bool

	revalidating sync.WaitGroup
	closed       atomic.Bool
}

func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if err := cfg.Init(); err != nil {
		return nil, err
	}
	upstream, err := url.Parse(cfg.Upstream)
	if err != nil {
		return nil, fmt.Errorf("offline: parse upstream: %w", err)
	}

	m := &Manager{
		cfg:        cfg,
		upstream:   upstream,
		store:      NewMemoryStore(),
		transport:  http.DefaultTransport,
		notifier:   nopNotifier{},
		logger:     log.G,
		now:        time.Now,
		registered: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	m.client = &http.Client{Transport: m.transport, Timeout: cfg.FetchTimeout}
	m.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
		},
		Transport: m.transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			m.logger.Warn().Err(err).Str("method", r.Method).Str("url", r.URL.RequestURI()).Msg("proxy failed")
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		},
	}
	return m, nil
}

// Install fetches the manifest into a new generation for version. Assets
// that fail to fetch are skipped. The generation waits for SkipWaiting
// unless nothing is active yet.
func (m *Manager) Install(ctx context.Context, version string) (Generation, error) {
	if version == "" {
		version = m.cfg.Version
	}
	gen := &Generation{
		ID:        uuid.NewString(),
		Name:      m.cfg.Name(version),
		Version:   version,
		State:     StateInstalling,
		CreatedAt: m.now(),
	}

	var stored atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, m.cfg.InstallWorkers))
	for _, u := range m.cfg.Manifest {
		g.Go(func() error {
			e, err := m.fetch(gctx, u, nil)
			switch {
			case err != nil:
				m.logger.Warn().Err(err).Str("url", u).Str("generation", gen.Name).Msg("precache failed")
				installFetchTotal.WithLabelValues("error").Inc()
				return nil
			case !e.ok():
				m.logger.Warn().Int("status", e.Status).Str("url", u).Str("generation", gen.Name).Msg("precache skipped")
				installFetchTotal.WithLabelValues("status").Inc()
				return nil
			}
			if err := m.store.Put(gctx, gen.Name, e); err != nil {
				m.logger.Warn().Err(err).Str("url", u).Msg("precache store failed")
				installFetchTotal.WithLabelValues("error").Inc()
				return nil
			}
			installFetchTotal.WithLabelValues("ok").Inc()
			stored.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Generation{}, err
	}
	gen.Resources = int(stored.Load())

	m.mu.Lock()
	activated := m.active == nil || m.active.Name == gen.Name
	var keep []string
	if activated {
		gen.State = StateActive
		if m.active == nil {
			m.waiting = nil
		}
		m.active = gen
		keep = append(keep, gen.Name)
		if m.waiting != nil {
			keep = append(keep, m.waiting.Name)
		}
	} else {
		gen.State = StateWaiting
		m.waiting = gen
	}
	m.registered = true
	out := *gen
	m.mu.Unlock()

	if activated {
		// generations left over from an earlier run or a wiped cache
		if err := m.purgeExcept(ctx, keep...); err != nil {
			m.logger.Warn().Err(err).Str("generation", gen.Name).Msg("purge old generations failed")
		}
	}
	m.updateGauge(ctx)
	m.logger.Info().
		Str("generation", gen.Name).
		Str("id", gen.ID).
		Str("state", string(gen.State)).
		Int("resources", gen.Resources).
		Int("manifest", len(m.cfg.Manifest)).
		Msg("generation installed")
	return out, nil
}

// SkipWaiting activates the waiting generation, deletes every other one and
// tells connected clients the controller changed. Clients are asked to
// reload only when the activation is user initiated. A SKIP_WAITING control
// message is user initiated unless it is marked incidental.
func (m *Manager) SkipWaiting(ctx context.Context, userInitiated bool) error {
	m.mu.Lock()
	if m.waiting != nil {
		m.waiting.State = StateActive
		m.active = m.waiting
		m.waiting = nil
	}
	var active Generation
	if m.active != nil {
		active = *m.active
	}
	m.mu.Unlock()

	if active.Name == "" {
		return ErrNoGeneration
	}

	err := m.purgeExcept(ctx, active.Name)
	m.updateGauge(ctx)

	m.notifier.Broadcast(Message{Type: MsgControllerChange, Version: active.Version, CacheGenerationID: active.ID})
	if userInitiated {
		m.notifier.Broadcast(Message{Type: MsgReload, Version: active.Version})
	}
	m.logger.Info().Str("generation", active.Name).Bool("user_initiated", userInitiated).Msg("generation activated")
	return err
}

// purgeExcept deletes every stored generation not named in keep.
func (m *Manager) purgeExcept(ctx context.Context, keep ...string) error {
	names, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("offline: list generations: %w", err)
	}
	var errs []error
	for _, name := range names {
		if slices.Contains(keep, name) {
			continue
		}
		if err := m.store.Delete(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", name, err))
			continue
		}
		m.logger.Info().Str("generation", name).Msg("old generation deleted")
	}
	return errors.Join(errs...)
}

// ClearActive deletes the active generation. Requests go to the network
// until the next install.
func (m *Manager) ClearActive(ctx context.Context) error {
	m.mu.Lock()
	active := m.active
	m.active = nil
	m.mu.Unlock()

	if active == nil {
		return nil
	}
	defer m.updateGauge(ctx)
	return m.store.Delete(ctx, active.Name)
}

// ClearAll deletes every generation. With unregister the manager stops
// serving from cache until the next install.
func (m *Manager) ClearAll(ctx context.Context, unregister bool) error {
	m.mu.Lock()
	m.active, m.waiting = nil, nil
	if unregister {
		m.registered = false
	}
	m.mu.Unlock()

	names, err := m.store.List(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range names {
		if err := m.store.Delete(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	m.updateGauge(ctx)
	return errors.Join(errs...)
}

// Unregister detaches the manager: every request is proxied untouched.
func (m *Manager) Unregister() {
	m.mu.Lock()
	m.registered = false
	m.mu.Unlock()
}

func (m *Manager) Registered() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registered
}

func (m *Manager) Active() (Generation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil {
		return Generation{}, false
	}
	return *m.active, true
}

func (m *Manager) Waiting() (Generation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.waiting == nil {
		return Generation{}, false
	}
	return *m.waiting, true
}

// Generations lists the generation names present in the store.
func (m *Manager) Generations(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Handle answers a control channel message.
func (m *Manager) Handle(ctx context.Context, msg Message) (Message, error) {
	switch msg.Type {
	case MsgGetVersion:
		reply := Message{Type: MsgVersion, Version: m.cfg.Version, ResourceCount: len(m.cfg.Manifest)}
		if active, ok := m.Active(); ok {
			reply.Version = active.Version
			reply.CacheGenerationID = active.ID
		}
		return reply, nil

	case MsgSkipWaiting:
		if err := m.SkipWaiting(ctx, !msg.Incidental); err != nil {
			return Message{Type: MsgActivated, Error: err.Error()}, err
		}
		active, _ := m.Active()
		return Message{Type: MsgActivated, Version: active.Version, CacheGenerationID: active.ID}, nil

	case MsgClearCache:
		if err := m.ClearActive(ctx); err != nil {
			return Message{Type: MsgCacheCleared, Error: err.Error()}, err
		}
		return Message{Type: MsgCacheCleared}, nil

	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
}

// Close waits for background revalidations.
func (m *Manager) Close() error {
	m.closed.Store(true)
	m.revalidating.Wait()
	return nil
}

func (m *Manager) updateGauge(ctx context.Context) {
	if names, err := m.store.List(ctx); err == nil {
		generationsGauge.Set(float64(len(names)))
	}
}

// fetch GETs uri from upstream and captures the whole response.
func (m *Manager) fetch(ctx context.Context, uri string, header http.Header) (*Entry, error) {
	ref, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	target := m.upstream.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	for _, k := range []string{"Accept", "Accept-Language", "Cache-Control"} {
		if v := header.Get(k); v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}
	return &Entry{
		URL:      ref.RequestURI(),
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		StoredAt: m.now(),
	}, nil
}

type route string

const (
	routeFragment route = "fragment"
	routeScript   route = "script"
	routeDocument route = "document"
	routeStatic   route = "static"
)

func (m *Manager) route(r *http.Request) route {
	p := r.URL.Path
	for _, prefix := range m.cfg.FragmentPrefixes {
		if strings.HasPrefix(p, prefix) {
			return routeFragment
		}
	}
	switch path.Ext(p) {
	case ".js", ".mjs":
		return routeScript
	case ".html":
		return routeDocument
	}
	if p == "/" || strings.Contains(r.Header.Get("Accept"), "text/html") {
		return routeDocument
	}
	return routeStatic
}
