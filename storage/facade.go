package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kochabx/studycore/errors"
	"github.com/kochabx/studycore/log"
	"github.com/kochabx/studycore/store/kv"
)

// QuotaMessage is returned to the user when recovery could not free enough space.
const QuotaMessage = "Storage is full. Export your data, then delete old analytics history or notes to free space."

// KV is the store the facade owns. *kv.Store implements it.
type KV interface {
	Open(ctx context.Context) error
	Set(ctx context.Context, key string, value any) error
	SetBatch(ctx context.Context, items []kv.Item) error
	GetRaw(ctx context.Context, key string) (json.RawMessage, error)
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	GetAllKeys(ctx context.Context) ([]string, error)
	GetAll(ctx context.Context) ([]kv.Record, error)
	GetByPrefix(ctx context.Context, prefix string) ([]kv.Record, error)
	RemoveOlderThan(ctx context.Context, prefixes []string, cutoff time.Time) (int64, error)
	Usage(ctx context.Context) (int64, error)
	Quota() int64
}

// CacheClearer is the offline cache as seen by teardown.
type CacheClearer interface {
	ClearAll(ctx context.Context, unregister bool) error
}

// Facade is the single entry point for persistence. It translates store
// errors into result values and never returns a raw error to the caller.
type Facade struct {
	kv        KV
	cfg       Config
	legacy    LegacySource
	cache     CacheClearer
	estimator QuotaEstimator
	now       func() time.Time
	logger    *log.Logger
}

func New(store KV, opts ...Option) *Facade {
	f := &Facade{
		kv:     store,
		now:    time.Now,
		logger: log.G,
	}
	_ = f.cfg.Init()
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Save persists data under key.
//
// data must be plain detached data: values, maps, slices and structs owned by
// the caller for the duration of the call and not mutated concurrently.
// Channels, funcs and other non-encodable values fail with WRITE_FAILURE.
//
// When the store is full, records under the configured prune prefixes older
// than the retention window are deleted and the write is retried once.
func (f *Facade) Save(ctx context.Context, key string, data any) SaveResult {
	err := f.kv.Set(ctx, key, data)
	if err == nil {
		return SaveResult{Result: Result{Success: true}}
	}
	if !errors.Is(err, kv.ErrQuotaExceeded) {
		f.logger.Error().Err(err).Str("key", key).Msg("save failed")
		return SaveResult{Result: fail(writeReason(err), err)}
	}

	f.logger.Warn().Err(err).Str("key", key).Msg("storage quota exceeded, pruning")
	cleaned, perr := f.Prune(ctx)
	if perr != nil {
		f.logger.Error().Err(perr).Msg("prune failed")
	}

	err = f.kv.Set(ctx, key, data)
	if err == nil {
		f.logger.Info().Int64("cleaned", cleaned).Str("key", key).Msg("save recovered after prune")
		return SaveResult{Result: Result{Success: true}, Cleaned: cleaned}
	}

	usage, uerr := f.kv.Usage(ctx)
	if uerr != nil {
		f.logger.Warn().Err(uerr).Msg("read usage failed")
	}
	f.logger.Error().Err(err).Str("key", key).Int64("cleaned", cleaned).Msg("save failed after prune")
	return SaveResult{
		Result:         fail(errors.ReasonQuotaExceeded, err),
		QuotaExceeded:  true,
		CurrentUsageMB: toMB(usage),
		Cleaned:        cleaned,
		Message:        QuotaMessage,
	}
}

// SaveBatch persists all items atomically.
func (f *Facade) SaveBatch(ctx context.Context, items []kv.Item) Result {
	if err := f.kv.SetBatch(ctx, items); err != nil {
		f.logger.Error().Err(err).Int("items", len(items)).Msg("batch save failed")
		return fail(writeReason(err), err)
	}
	return Result{Success: true}
}

// Prune deletes stale records under the prune prefixes. A key carrying an
// event time after its prefix is judged by that time, any other record by
// when it was last written.
func (f *Facade) Prune(ctx context.Context) (int64, error) {
	prefixes := f.cfg.Prune.Prefixes
	if len(prefixes) == 0 {
		return 0, nil
	}
	cutoff := f.now().Add(-f.cfg.Prune.Retention)

	keys, err := f.kv.GetAllKeys(ctx)
	if err != nil {
		return 0, err
	}
	var removed int64
	for _, key := range keys {
		for _, p := range prefixes {
			at, ok := keyTime(key, p)
			if !ok || !at.Before(cutoff) {
				continue
			}
			if err := f.kv.Remove(ctx, key); err != nil {
				return removed, err
			}
			removed++
			break
		}
	}

	n, err := f.kv.RemoveOlderThan(ctx, prefixes, cutoff)
	return removed + n, err
}

// Load decodes the value under key into dest. A missing key is a success
// with Found false; dest may be nil to test presence.
func (f *Facade) Load(ctx context.Context, key string, dest any) LoadResult {
	raw, err := f.kv.GetRaw(ctx, key)
	if err != nil {
		f.logger.Error().Err(err).Str("key", key).Msg("load failed")
		return LoadResult{Result: fail(readReason(err), err)}
	}
	if raw == nil {
		return LoadResult{Result: Result{Success: true}}
	}
	if dest != nil {
		if err := json.Unmarshal(raw, dest); err != nil {
			f.logger.Error().Err(err).Str("key", key).Msg("decode failed")
			return LoadResult{Result: fail(errors.ReasonReadFailure, err), Found: true}
		}
	}
	return LoadResult{Result: Result{Success: true}, Found: true}
}

// LoadPrefix returns the raw values of every key under prefix.
func (f *Facade) LoadPrefix(ctx context.Context, prefix string) (map[string]json.RawMessage, Result) {
	recs, err := f.kv.GetByPrefix(ctx, prefix)
	if err != nil {
		f.logger.Error().Err(err).Str("prefix", prefix).Msg("load prefix failed")
		return nil, fail(readReason(err), err)
	}
	out := make(map[string]json.RawMessage, len(recs))
	for _, r := range recs {
		out[r.Key] = r.Raw()
	}
	return out, Result{Success: true}
}

func (f *Facade) Remove(ctx context.Context, key string) Result {
	if err := f.kv.Remove(ctx, key); err != nil {
		f.logger.Error().Err(err).Str("key", key).Msg("remove failed")
		return fail(writeReason(err), err)
	}
	return Result{Success: true}
}

func (f *Facade) Clear(ctx context.Context) Result {
	if err := f.kv.Clear(ctx); err != nil {
		f.logger.Error().Err(err).Msg("clear failed")
		return fail(writeReason(err), err)
	}
	return Result{Success: true}
}

// Keys lists every stored key.
func (f *Facade) Keys(ctx context.Context) ([]string, Result) {
	keys, err := f.kv.GetAllKeys(ctx)
	if err != nil {
		f.logger.Error().Err(err).Msg("list keys failed")
		return nil, fail(readReason(err), err)
	}
	return keys, Result{Success: true}
}

// ClearAllStorage wipes the store, the offline cache and the legacy source.
// Each subsystem reports independently under "kv", "cache" and "legacy".
func (f *Facade) ClearAllStorage(ctx context.Context, unregisterCache bool) map[string]bool {
	out := make(map[string]bool, 3)

	if err := f.kv.Clear(ctx); err != nil {
		f.logger.Error().Err(err).Msg("clear kv failed")
		out["kv"] = false
	} else {
		out["kv"] = true
	}

	if f.cache != nil {
		if err := f.cache.ClearAll(ctx, unregisterCache); err != nil {
			f.logger.Error().Err(err).Bool("unregister", unregisterCache).Msg("clear cache failed")
			out["cache"] = false
		} else {
			out["cache"] = true
		}
	}

	if f.legacy != nil {
		if err := f.legacy.Clear(ctx); err != nil {
			f.logger.Error().Err(err).Msg("clear legacy source failed")
			out["legacy"] = false
		} else {
			out["legacy"] = true
		}
	}

	f.logger.Info().Interface("result", out).Msg("all storage cleared")
	return out
}

func writeReason(err error) string {
	switch {
	case errors.Is(err, kv.ErrStoreUnavailable), errors.Is(err, kv.ErrClosed):
		return errors.ReasonStoreUnavailable
	case errors.Is(err, kv.ErrQuotaExceeded):
		return errors.ReasonQuotaExceeded
	default:
		return errors.ReasonWriteFailure
	}
}

func readReason(err error) string {
	if errors.Is(err, kv.ErrStoreUnavailable) || errors.Is(err, kv.ErrClosed) {
		return errors.ReasonStoreUnavailable
	}
	return errors.ReasonReadFailure
}

func wrapResult(op string, r Result) error {
	if r.Success {
		return nil
	}
	return fmt.Errorf("storage: %s: %w", op, r.Err())
}
