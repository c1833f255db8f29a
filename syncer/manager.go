package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kochabx/studycore/auth"
	"github.com/kochabx/studycore/core/worker"
	"github.com/kochabx/studycore/log"
	"github.com/kochabx/studycore/storage"
)

// Skip reasons.
const (
	ReasonInProgress = "in_progress"
	ReasonNoSession  = "no_session"
)

// SessionSource tells whether a signed-in session exists.
type SessionSource interface {
	GetSession(ctx context.Context) (*auth.SessionView, error)
}

// Poster sends an authenticated request; *auth.Client implements it.
type Poster interface {
	Post(ctx context.Context, path string, body, out any) error
}

// StateProvider reads the local state to push.
type StateProvider interface {
	Snapshot(ctx context.Context) (storage.Snapshot, error)
}

// Package is the body of a sync request. It is built per attempt and never stored.
type Package struct {
	storage.Snapshot
	LastUpdated int64 `json:"lastUpdated"`
}

// Outcome of one sync attempt.
type Outcome struct {
	Synced  bool      `json:"synced"`
	Skipped bool      `json:"skipped,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	Bytes   int       `json:"bytes,omitempty"`
	At      time.Time `json:"at"`
	Err     error     `json:"-"`
}

// Manager pushes local state to the remote API on a schedule. At most one
// sync runs at a time; failures are logged and never touch local data.
type Manager struct {
	cfg      Config
	sessions SessionSource
	client   Poster
	state    StateProvider
	pool     *worker.Pool
	ownsPool bool
	logger   *log.Logger
	now      func() time.Time

	syncing atomic.Bool
	last    atomic.Int64

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

type Option func(*Manager)

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithConfig(cfg Config) Option {
	return func(m *Manager) {
		_ = cfg.Init()
		m.cfg = cfg
	}
}

// WithPool serializes packages on p instead of a private pool.
func WithPool(p *worker.Pool) Option {
	return func(m *Manager) {
		m.pool = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func New(sessions SessionSource, client Poster, state StateProvider, opts ...Option) (*Manager, error) {
	m := &Manager{
		sessions: sessions,
		client:   client,
		state:    state,
		logger:   log.G,
		now:      time.Now,
	}
	_ = m.cfg.Init()
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if _, err := parser.Parse(m.cfg.Interval); err != nil {
		return nil, fmt.Errorf("syncer: invalid interval %q: %w", m.cfg.Interval, err)
	}
	if m.pool == nil {
		pool, err := worker.New(m.cfg.Workers, worker.WithTimeout(m.cfg.SerializeTimeout), worker.WithLogger(m.logger))
		if err != nil {
			return nil, err
		}
		m.pool, m.ownsPool = pool, true
	}
	return m, nil
}

// Start runs one sync right away and then on the configured interval.
// Calling Start on a running manager does nothing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	c := cron.New(cron.WithParser(parser), cron.WithLogger(cronLogger{logger: m.logger}))
	if _, err := c.AddFunc(m.cfg.Interval, func() {
		m.PerformSync(context.Background())
	}); err != nil {
		return fmt.Errorf("syncer: schedule: %w", err)
	}
	c.Start()
	m.cron, m.running = c, true

	go m.PerformSync(context.WithoutCancel(ctx))
	m.logger.Info().Str("interval", m.cfg.Interval).Msg("background sync started")
	return nil
}

// Stop cancels the schedule. A sync already in flight is allowed to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.cron.Stop()
	m.cron, m.running = nil, false
	m.logger.Info().Msg("background sync stopped")
}

// Close stops the schedule and releases the serialization pool.
func (m *Manager) Close() error {
	m.Stop()
	if m.ownsPool {
		m.pool.Close()
	}
	return nil
}

func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) IsSyncing() bool {
	return m.syncing.Load()
}

// LastSyncTime reports the last successful sync, if any.
func (m *Manager) LastSyncTime() (time.Time, bool) {
	ms := m.last.Load()
	if ms == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// ForceSync syncs now, outside the schedule.
func (m *Manager) ForceSync(ctx context.Context) Outcome {
	m.logger.Debug().Msg("forced sync")
	return m.PerformSync(ctx)
}

// PerformSync pushes one package. It returns immediately with Skipped set
// when another sync is running or nobody is signed in.
func (m *Manager) PerformSync(ctx context.Context) Outcome {
	now := m.now()
	if !m.syncing.CompareAndSwap(false, true) {
		syncTotal.WithLabelValues("skipped_in_progress").Inc()
		return Outcome{Skipped: true, Reason: ReasonInProgress, At: now}
	}
	defer m.syncing.Store(false)

	sess, err := m.sessions.GetSession(ctx)
	if err != nil {
		syncTotal.WithLabelValues("error").Inc()
		m.logger.Warn().Err(err).Msg("sync: read session failed")
		return Outcome{Err: err, At: now}
	}
	if sess == nil {
		syncTotal.WithLabelValues("skipped_no_session").Inc()
		m.logger.Debug().Msg("sync skipped: not signed in")
		return Outcome{Skipped: true, Reason: ReasonNoSession, At: now}
	}

	start := time.Now()
	out := m.push(ctx, now)
	syncDuration.Observe(time.Since(start).Seconds())
	if out.Err != nil {
		syncTotal.WithLabelValues("error").Inc()
		m.logger.Warn().Err(out.Err).Msg("sync failed")
		return out
	}

	m.last.Store(now.UnixMilli())
	lastSuccess.Set(float64(now.Unix()))
	syncTotal.WithLabelValues("ok").Inc()
	m.logger.Info().Int("bytes", out.Bytes).Msg("sync completed")
	return out
}

func (m *Manager) push(ctx context.Context, now time.Time) Outcome {
	snap, err := m.state.Snapshot(ctx)
	if err != nil {
		return Outcome{Err: fmt.Errorf("syncer: read state: %w", err), At: now}
	}

	body, err := worker.Marshal(ctx, m.pool, Package{Snapshot: snap, LastUpdated: now.UnixMilli()})
	if err != nil {
		return Outcome{Err: fmt.Errorf("syncer: encode package: %w", err), At: now}
	}

	if err := m.client.Post(ctx, m.cfg.Endpoint, json.RawMessage(body), nil); err != nil {
		return Outcome{Err: err, Bytes: len(body), At: now}
	}
	return Outcome{Synced: true, Bytes: len(body), At: now}
}
