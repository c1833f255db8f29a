package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kochabx/studycore/errors"
	"github.com/kochabx/studycore/store/kv"
)

// MigrationMarkerKey is written once the legacy source has been migrated.
const MigrationMarkerKey = "__migration_complete__"

type migrationMarker struct {
	CompletedAt int64    `json:"completedAt"`
	Migrated    int      `json:"migrated"`
	Failed      []string `json:"failed,omitempty"`
}

// Init opens the store and migrates the legacy source if it holds data and
// has not been migrated yet. A store that cannot be opened fails with
// STORE_UNAVAILABLE; keys that fail to migrate are reported with
// MIGRATION_PARTIAL_FAILURE while the rest of the store stays usable.
func (f *Facade) Init(ctx context.Context) InitResult {
	if err := f.kv.Open(ctx); err != nil {
		f.logger.Error().Err(err).Msg("storage unavailable")
		return InitResult{Result: fail(errors.ReasonStoreUnavailable, err)}
	}

	res := InitResult{Result: Result{Success: true}}
	if f.legacy == nil {
		return res
	}

	marker, err := f.kv.GetRaw(ctx, MigrationMarkerKey)
	if err != nil {
		f.logger.Warn().Err(err).Msg("read migration marker failed")
		return res
	}
	if marker != nil {
		res.MigrationComplete = true
		return res
	}

	keys, err := f.legacy.Keys(ctx)
	if err != nil {
		f.logger.Warn().Err(err).Msg("enumerate legacy source failed")
		return res
	}
	if len(keys) == 0 {
		return res
	}

	for _, key := range keys {
		if key == MigrationMarkerKey || strings.TrimSpace(key) == "" {
			continue
		}
		raw, err := f.legacy.Get(ctx, key)
		if err != nil {
			f.logger.Warn().Err(err).Str("key", key).Msg("read legacy key failed")
			res.Failed = append(res.Failed, key)
			continue
		}
		if key == LegacyAnalyticsKey {
			if n, ok := f.migrateEvents(ctx, raw); ok {
				f.logger.Debug().Int("events", n).Msg("legacy analytics split into events")
				res.Migrated++
				continue
			}
		}
		if err := f.kv.Set(ctx, key, legacyValue(raw)); err != nil {
			f.logger.Warn().Err(err).Str("key", key).Msg("migrate legacy key failed")
			res.Failed = append(res.Failed, key)
			continue
		}
		res.Migrated++
	}

	err = f.kv.Set(ctx, MigrationMarkerKey, migrationMarker{
		CompletedAt: f.now().UnixMilli(),
		Migrated:    res.Migrated,
		Failed:      res.Failed,
	})
	if err != nil {
		f.logger.Error().Err(err).Msg("write migration marker failed")
	} else {
		res.MigrationComplete = true
	}

	if len(res.Failed) > 0 {
		res.Reason = errors.ReasonMigrationPartialFailure
		res.Error = errors.MigrationPartialFailure("%d of %d legacy keys not migrated", len(res.Failed), len(keys)).Error()
	}
	f.logger.Info().
		Int("migrated", res.Migrated).
		Int("failed", len(res.Failed)).
		Msg("legacy migration finished")
	return res
}

type legacyEvent struct {
	AnalyticsEvent
	// milliseconds since the epoch, used when at is absent
	Timestamp int64 `json:"timestamp"`
}

// migrateEvents stores a legacy event list as one record per event. It
// reports false when raw is not an event list or the batch could not be
// written, leaving the caller to migrate the value as is.
func (f *Facade) migrateEvents(ctx context.Context, raw string) (int, bool) {
	var events []legacyEvent
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		return 0, false
	}
	items := make([]kv.Item, 0, len(events))
	for i, le := range events {
		ev := le.AnalyticsEvent
		if ev.At.IsZero() && le.Timestamp > 0 {
			ev.At = time.UnixMilli(le.Timestamp)
		}
		if ev.ID == "" {
			// stable across re-runs so the upsert stays idempotent
			ev.ID = fmt.Sprintf("legacy-%d", i)
		}
		ev = f.stampEvent(ev)
		items = append(items, kv.Item{Key: eventKey(ev), Value: ev})
	}
	if len(items) > 0 {
		if err := f.kv.SetBatch(ctx, items); err != nil {
			f.logger.Warn().Err(err).Msg("migrate legacy analytics failed")
			return 0, false
		}
	}
	return len(items), true
}

// legacyValue keeps JSON text as JSON and stores anything else as a string.
func legacyValue(s string) any {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	return s
}
