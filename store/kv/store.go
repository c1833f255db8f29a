package kv

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/kochabx/studycore/log"
)

var (
	colKey       = clause.Column{Name: "key"}
	colValue     = clause.Column{Name: "value"}
	colTimestamp = clause.Column{Name: "timestamp"}
)

// Store 基于单表的键值存储。
//
// 连接在首次使用时打开，并发调用共享同一次打开过程；
// 连接意外关闭后，下一次调用会重新打开。
type Store struct {
	cfg    *Config
	opts   *options
	logger *log.Logger

	mu      sync.Mutex
	db      *gorm.DB
	opening *openCall
	closed  bool
	opens   atomic.Int32
}

type openCall struct {
	done chan struct{}
	db   *gorm.DB
	err  error
}

// New 创建存储，不会立即连接数据库
func New(cfg *Config, opts ...Option) (*Store, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.Init(); err != nil {
		return nil, err
	}
	if _, err := cfg.DSN(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	s := &Store{cfg: cfg, opts: o, logger: o.logger}
	if s.logger == nil {
		s.logger = log.G
	}
	return s, nil
}

// Open 打开数据库并确保表结构为最新版本，可重复调用
func (s *Store) Open(ctx context.Context) error {
	_, err := s.conn(ctx)
	return err
}

func (s *Store) conn(ctx context.Context) (*gorm.DB, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.db != nil {
		db := s.db
		s.mu.Unlock()
		return db, nil
	}

	if call := s.opening; call != nil {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.db, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	call := &openCall{done: make(chan struct{})}
	s.opening = call
	s.mu.Unlock()

	call.db, call.err = s.connect()

	s.mu.Lock()
	if call.err == nil {
		if s.closed {
			closeDB(call.db)
			call.db, call.err = nil, ErrClosed
		} else {
			s.db = call.db
		}
	}
	s.opening = nil
	s.mu.Unlock()
	close(call.done)

	return call.db, call.err
}

func (s *Store) connect() (*gorm.DB, error) {
	if s.cfg.Driver == DriverSQLite {
		if dir := filepath.Dir(s.cfg.SQLite.FilePath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
			}
		}
	}

	dialector, err := s.cfg.dialector()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(gormLogWriter{logger: s.logger}, logger.Config{
			LogLevel:                  s.cfg.gormLogLevel(),
			SlowThreshold:             s.opts.slowQuery,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	sqlDB.SetMaxIdleConns(s.cfg.Pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(s.cfg.Pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(s.cfg.Pool.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(s.cfg.Pool.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.connectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if err := migrate(db.WithContext(ctx)); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%w: migrate schema: %w", ErrStoreUnavailable, err)
	}

	n := s.opens.Add(1)
	s.logger.Debug().
		Str("driver", s.cfg.Driver.String()).
		Int32("opens", n).
		Msg("kv store opened")
	return db, nil
}

// migrate 建表并把结构升级到 SchemaVersion
func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Record{}, &schemaMeta{}); err != nil {
		return err
	}

	var metas []schemaMeta
	if err := db.Where(clause.Eq{Column: clause.Column{Name: "name"}, Value: "records"}).Limit(1).Find(&metas).Error; err != nil {
		return err
	}
	if len(metas) > 0 && metas[0].Version >= SchemaVersion {
		return nil
	}

	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"version"}),
	}).Create(&schemaMeta{Name: "records", Version: SchemaVersion}).Error
}

// with 执行 fn；若连接已被关闭，重新打开后再试一次
func (s *Store) with(ctx context.Context, op string, fn func(db *gorm.DB) error) (err error) {
	start := time.Now()
	defer func() { observe(op, start, err) }()

	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	err = fn(db.WithContext(ctx))
	if err == nil || !isConnClosed(err) {
		return err
	}

	s.logger.Warn().Err(err).Str("op", op).Msg("kv connection lost, reopening")
	s.reset(db)

	if db, err = s.conn(ctx); err != nil {
		return err
	}
	return fn(db.WithContext(ctx))
}

func (s *Store) reset(stale *gorm.DB) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == stale {
		s.db = nil
	}
}

// Set 写入或覆盖 key，时间戳刷新为当前时间
func (s *Store) Set(ctx context.Context, key string, value any) error {
	return s.SetBatch(ctx, []Item{{Key: key, Value: value}})
}

// SetBatch 在一个事务内写入全部记录，任何一条失败则全部回滚
func (s *Store) SetBatch(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}

	op := "set_batch"
	if len(items) == 1 {
		op = "set"
	}

	return s.with(ctx, op, func(db *gorm.DB) error {
		ts := s.opts.now().UnixMilli()

		return db.Transaction(func(tx *gorm.DB) error {
			for i, it := range items {
				if it.Key == "" {
					return fmt.Errorf("%w: item %d has an empty key", ErrWriteFailure, i)
				}
				data, err := encode(it.Value)
				if err != nil {
					return fmt.Errorf("%w: encode %q: %w", ErrWriteFailure, it.Key, err)
				}

				rec := Record{Key: it.Key, Value: data, Timestamp: ts}
				err = tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{colKey},
					DoUpdates: clause.AssignmentColumns([]string{"value", "timestamp"}),
				}).Create(&rec).Error
				if err != nil {
					return classifyWrite(err)
				}
			}
			return s.checkQuota(tx)
		})
	})
}

func (s *Store) checkQuota(tx *gorm.DB) error {
	if s.cfg.QuotaBytes <= 0 {
		return nil
	}
	used, err := usage(tx)
	if err != nil {
		return classifyWrite(err)
	}
	if used > s.cfg.QuotaBytes {
		return fmt.Errorf("%w: %d of %d bytes", ErrQuotaExceeded, used, s.cfg.QuotaBytes)
	}
	return nil
}

// Get 读取 key 并解码到 dest，不存在时返回 false 和 nil 错误
func (s *Store) Get(ctx context.Context, key string, dest any) (bool, error) {
	rec, ok, err := s.GetRecord(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if dest != nil {
		if err := json.Unmarshal(rec.Value, dest); err != nil {
			return true, fmt.Errorf("%w: decode %q: %w", ErrReadFailure, key, err)
		}
	}
	return true, nil
}

// GetRaw 返回 JSON 原文，不存在时返回 nil
func (s *Store) GetRaw(ctx context.Context, key string) (json.RawMessage, error) {
	rec, ok, err := s.GetRecord(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	return rec.Raw(), nil
}

// GetRecord 返回完整记录
func (s *Store) GetRecord(ctx context.Context, key string) (Record, bool, error) {
	var recs []Record
	err := s.with(ctx, "get", func(db *gorm.DB) error {
		return db.Where(clause.Eq{Column: colKey, Value: key}).Limit(1).Find(&recs).Error
	})
	if err != nil {
		return Record{}, false, readErr(err)
	}
	if len(recs) == 0 {
		return Record{}, false, nil
	}
	return recs[0], true, nil
}

// Remove 删除 key，不存在时不报错
func (s *Store) Remove(ctx context.Context, key string) error {
	err := s.with(ctx, "remove", func(db *gorm.DB) error {
		return db.Where(clause.Eq{Column: colKey, Value: key}).Delete(&Record{}).Error
	})
	if err != nil {
		return classifyWrite(err)
	}
	return nil
}

// Clear 删除全部记录
func (s *Store) Clear(ctx context.Context) error {
	err := s.with(ctx, "clear", func(db *gorm.DB) error {
		return db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Record{}).Error
	})
	if err != nil {
		return classifyWrite(err)
	}
	return nil
}

// GetAllKeys 按字典序返回全部 key
func (s *Store) GetAllKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.with(ctx, "keys", func(db *gorm.DB) error {
		return db.Model(&Record{}).Order(clause.OrderByColumn{Column: colKey}).Pluck("key", &keys).Error
	})
	if err != nil {
		return nil, readErr(err)
	}
	return keys, nil
}

// GetAll 返回全部记录
func (s *Store) GetAll(ctx context.Context) ([]Record, error) {
	var recs []Record
	err := s.with(ctx, "all", func(db *gorm.DB) error {
		return db.Order(clause.OrderByColumn{Column: colKey}).Find(&recs).Error
	})
	if err != nil {
		return nil, readErr(err)
	}
	return recs, nil
}

// GetByPrefix 返回 key 以 prefix 开头的记录，按 key 排序
func (s *Store) GetByPrefix(ctx context.Context, prefix string) ([]Record, error) {
	var recs []Record
	err := s.with(ctx, "prefix", func(db *gorm.DB) error {
		// LIKE 仅用于缩小范围，_ 与大小写由下面的 HasPrefix 精确过滤
		return db.Where(clause.Like{Column: colKey, Value: prefix + "%"}).
			Order(clause.OrderByColumn{Column: colKey}).
			Find(&recs).Error
	})
	if err != nil {
		return nil, readErr(err)
	}

	out := recs[:0]
	for _, r := range recs {
		if strings.HasPrefix(r.Key, prefix) {
			out = append(out, r)
		}
	}
	return out, nil
}

// RemoveOlderThan 删除 key 以任一 prefix 开头且早于 cutoff 写入的记录，返回删除条数
func (s *Store) RemoveOlderThan(ctx context.Context, prefixes []string, cutoff time.Time) (int64, error) {
	if len(prefixes) == 0 {
		return 0, nil
	}

	var removed int64
	err := s.with(ctx, "prune", func(db *gorm.DB) error {
		var candidates []string
		err := db.Model(&Record{}).
			Where(clause.Lt{Column: colTimestamp, Value: cutoff.UnixMilli()}).
			Pluck("key", &candidates).Error
		if err != nil {
			return err
		}

		var stale []any
		for _, k := range candidates {
			for _, p := range prefixes {
				if strings.HasPrefix(k, p) {
					stale = append(stale, k)
					break
				}
			}
		}
		if len(stale) == 0 {
			return nil
		}

		res := db.Where(clause.IN{Column: colKey, Values: stale}).Delete(&Record{})
		removed = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, classifyWrite(err)
	}
	return removed, nil
}

// Usage 返回键与值的总字节数
func (s *Store) Usage(ctx context.Context) (int64, error) {
	var used int64
	err := s.with(ctx, "usage", func(db *gorm.DB) error {
		var err error
		used, err = usage(db)
		return err
	})
	if err != nil {
		return 0, readErr(err)
	}
	return used, nil
}

// Quota 返回配置的字节上限，0 表示不限制
func (s *Store) Quota() int64 {
	return s.cfg.QuotaBytes
}

// Ping 检查连接
func (s *Store) Ping(ctx context.Context) error {
	return s.with(ctx, "ping", func(db *gorm.DB) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
}

// Close 关闭连接，之后的调用返回 ErrClosed
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.db == nil {
		return nil
	}
	db := s.db
	s.db = nil
	return closeDB(db)
}

func usage(db *gorm.DB) (int64, error) {
	var used int64
	err := db.Model(&Record{}).
		Select("COALESCE(SUM(LENGTH(?) + LENGTH(?)), 0)", colKey, colValue).
		Scan(&used).Error
	return used, err
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func encode(v any) ([]byte, error) {
	switch val := v.(type) {
	case json.RawMessage:
		if !json.Valid(val) {
			return nil, errors.New("invalid raw JSON")
		}
		return val, nil
	default:
		return json.Marshal(val)
	}
}

func isConnClosed(err error) bool {
	return errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed")
}

func isFull(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database or disk is full") ||
		strings.Contains(msg, "sqlite_full") ||
		strings.Contains(msg, "no space left on device") ||
		strings.Contains(msg, "sqlstate 53100") ||
		strings.Contains(msg, "error 1114")
}

func classifyWrite(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrQuotaExceeded), errors.Is(err, ErrWriteFailure),
		errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrClosed):
		return err
	case isFull(err):
		return fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
	default:
		return fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
}

func readErr(err error) error {
	switch {
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrClosed), errors.Is(err, ErrReadFailure):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrReadFailure, err)
	}
}
