// Package service builds the persistence core once at startup and hands the
// resulting PersistenceService to whoever needs it.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kochabx/studycore/auth"
	"github.com/kochabx/studycore/config"
	"github.com/kochabx/studycore/core/worker"
	serrors "github.com/kochabx/studycore/errors"
	"github.com/kochabx/studycore/log"
	"github.com/kochabx/studycore/offline"
	"github.com/kochabx/studycore/storage"
	"github.com/kochabx/studycore/store/kv"
	"github.com/kochabx/studycore/store/oss/minio"
	"github.com/kochabx/studycore/store/redis"
	"github.com/kochabx/studycore/syncer"
	"github.com/kochabx/studycore/transport"
	khttp "github.com/kochabx/studycore/transport/http"
	"github.com/kochabx/studycore/transport/websocket"
)

var (
	ErrRedisRequired = errors.New("service: redis is not configured")
	ErrMinioRequired = errors.New("service: minio is not configured")
)

// PersistenceService is the context object of the persistence core. Offline
// is nil when no upstream origin is configured.
type PersistenceService struct {
	Settings *config.Settings
	Logger   *log.Logger

	KV      *kv.Store
	Storage *storage.Facade
	Stores  *storage.Stores
	Offline *offline.Manager
	Hub     *websocket.Hub
	Tokens  *auth.Manager
	API     *auth.Client
	Sync    *syncer.Manager

	pool  *worker.Pool
	redis *redis.Client
	minio *minio.Client
}

type options struct {
	logger    *log.Logger
	state     syncer.StateProvider
	transport http.RoundTripper
	objects   offline.ObjectStore
}

type Option func(*options)

func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithStateProvider replaces the local stores as the source of sync packages.
func WithStateProvider(p syncer.StateProvider) Option {
	return func(o *options) {
		o.state = p
	}
}

// WithTransport sets the round tripper the offline cache fetches through.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

// WithObjectStore backs the offline cache with objects instead of a minio
// client built from settings.
func WithObjectStore(objects offline.ObjectStore) Option {
	return func(o *options) {
		o.objects = objects
	}
}

// New wires every component from s. Nothing is opened or started yet except
// the redis and minio clients, which ping on creation.
func New(ctx context.Context, s *config.Settings, opts ...Option) (_ *PersistenceService, err error) {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.logger == nil {
		o.logger = log.G
	}

	p := &PersistenceService{Settings: s, Logger: o.logger}
	defer func() {
		if err != nil {
			_ = p.Close()
		}
	}()

	if s.Redis.Enabled() {
		if p.redis, err = redis.New(ctx, &s.Redis, redis.WithLogger(o.logger), redis.WithTracing(), redis.WithMetrics()); err != nil {
			return nil, fmt.Errorf("service: redis: %w", err)
		}
	}

	if p.KV, err = kv.New(&s.Store, kv.WithLogger(o.logger)); err != nil {
		return nil, fmt.Errorf("service: kv: %w", err)
	}

	if p.pool, err = worker.New(s.Sync.Workers, worker.WithTimeout(s.Sync.SerializeTimeout), worker.WithLogger(o.logger)); err != nil {
		return nil, fmt.Errorf("service: worker pool: %w", err)
	}

	p.Hub = websocket.NewHub(websocket.WithConfig(s.Socket), websocket.WithLogger(o.logger))
	if s.Offline.Upstream != "" {
		if err = p.buildOffline(ctx, o); err != nil {
			return nil, err
		}
	}

	if err = p.buildStorage(); err != nil {
		return nil, err
	}

	sessions, err := p.sessionStore()
	if err != nil {
		return nil, err
	}
	p.Tokens = auth.NewManager(s.Auth, sessions, auth.WithLogger(o.logger))
	p.API = auth.NewClient(p.Tokens)

	state := o.state
	if state == nil {
		state = p.Stores
	}
	if p.Sync, err = syncer.New(p.Tokens, p.API, state,
		syncer.WithConfig(s.Sync),
		syncer.WithPool(p.pool),
		syncer.WithLogger(o.logger),
	); err != nil {
		return nil, fmt.Errorf("service: syncer: %w", err)
	}

	return p, nil
}

func (p *PersistenceService) buildOffline(ctx context.Context, o *options) error {
	s := p.Settings
	var store offline.GenerationStore = offline.NewMemoryStore()
	if s.Offline.Backend == "minio" {
		objects := o.objects
		if objects == nil {
			if !s.Minio.Enabled() {
				return ErrMinioRequired
			}
			client, err := minio.New(ctx, &s.Minio, p.Logger)
			if err != nil {
				return fmt.Errorf("service: minio: %w", err)
			}
			p.minio, objects = client, client
		}
		store = offline.NewMinioStore(objects)
	}

	mgr, err := offline.NewManager(s.Offline,
		offline.WithStore(store),
		offline.WithNotifier(p.Hub),
		offline.WithTransport(o.transport),
		offline.WithLogger(p.Logger),
	)
	if err != nil {
		return fmt.Errorf("service: offline: %w", err)
	}
	p.Offline = mgr
	p.Hub.OnMessage(mgr.Handle)
	return nil
}

func (p *PersistenceService) buildStorage() error {
	s := p.Settings
	opts := []storage.Option{
		storage.WithConfig(s.Storage),
		storage.WithLogger(p.Logger),
	}
	if p.Offline != nil {
		opts = append(opts, storage.WithCacheClearer(p.Offline))
	}
	if s.Store.Driver == kv.DriverSQLite {
		opts = append(opts, storage.WithQuotaEstimator(storage.DiskEstimator{Path: s.Store.SQLite.FilePath}))
	}

	switch s.Legacy.Source {
	case "file":
		opts = append(opts, storage.WithLegacySource(storage.NewFileSource(s.Legacy.Path)))
	case "redis":
		if p.redis == nil {
			return ErrRedisRequired
		}
		opts = append(opts, storage.WithLegacySource(storage.NewRedisSource(p.redis, s.Legacy.Hash)))
	}

	p.Storage = storage.New(p.KV, opts...)
	p.Stores = storage.NewStores(p.Storage)
	return nil
}

func (p *PersistenceService) sessionStore() (auth.SessionStore, error) {
	s := p.Settings.Auth
	if s.SessionBackend == "redis" {
		if p.redis == nil {
			return nil, ErrRedisRequired
		}
		return auth.NewRedisSessionStore(p.redis, s.SessionKey, s.SessionTTL), nil
	}
	return auth.NewKVSessionStore(p.KV, s.SessionKey), nil
}

// Init opens the store and runs the one-time legacy migration.
func (p *PersistenceService) Init(ctx context.Context) storage.InitResult {
	res := p.Storage.Init(ctx)
	ev := p.Logger.Info()
	if !res.Success {
		ev = p.Logger.Warn().Str("reason", res.Reason)
	}
	ev.Int("migrated", res.Migrated).Int("failed", len(res.Failed)).Bool("migration_complete", res.MigrationComplete).Msg("storage initialized")
	return res
}

// Start initializes storage, installs the configured cache generation and
// starts background sync. Only a store that cannot be opened is fatal.
func (p *PersistenceService) Start(ctx context.Context) error {
	if res := p.Init(ctx); !res.Success && res.Reason == serrors.ReasonStoreUnavailable {
		return res.Err()
	}

	if p.Offline != nil {
		gen, err := p.Offline.Install(ctx, p.Settings.Offline.Version)
		if err != nil {
			p.Logger.Warn().Err(err).Msg("offline install failed, serving from network")
		} else {
			p.Logger.Info().Str("generation", gen.Name).Str("state", string(gen.State)).Int("resources", gen.Resources).Msg("offline cache installed")
		}
	}

	if p.Settings.Sync.Enabled {
		if err := p.Sync.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Server builds the local HTTP server.
func (p *PersistenceService) Server() transport.Server {
	s := p.Settings.Server
	_ = s.Init()

	var ctl khttp.Controller
	if p.Offline != nil {
		ctl = p.Offline
	}
	return khttp.NewServer(s.Addr, khttp.NewRouter(s, ctl, p.Hub),
		khttp.WithMeta(khttp.Meta{Name: "studycore"}),
		khttp.WithMetricsOptions(s.Metrics),
		khttp.WithHealthOptions(s.Health),
		khttp.WithHealthCheck("kv", p.KV.Ping),
		khttp.WithReadHeaderTimeout(s.ReadHeaderTimeout),
		khttp.WithLogger(p.Logger),
	)
}

// Close stops sync first so no package is read from a closing store.
func (p *PersistenceService) Close() error {
	var errs []error
	if p.Sync != nil {
		errs = append(errs, p.Sync.Close())
	}
	if p.Hub != nil {
		errs = append(errs, p.Hub.Close())
	}
	if p.Offline != nil {
		errs = append(errs, p.Offline.Close())
	}
	if p.pool != nil {
		p.pool.Close()
	}
	if p.KV != nil {
		errs = append(errs, p.KV.Close())
	}
	if p.redis != nil {
		errs = append(errs, p.redis.Close())
	}
	if p.minio != nil {
		errs = append(errs, p.minio.Close())
	}
	return errors.Join(errs...)
}
