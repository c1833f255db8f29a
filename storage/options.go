package storage

import (
	"time"

	"github.com/kochabx/studycore/log"
)

type Option func(*Facade)

func WithLogger(l *log.Logger) Option {
	return func(f *Facade) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithConfig replaces prune targets and fallback quota.
func WithConfig(cfg Config) Option {
	return func(f *Facade) {
		_ = cfg.Init()
		f.cfg = cfg
	}
}

func WithLegacySource(src LegacySource) Option {
	return func(f *Facade) {
		f.legacy = src
	}
}

func WithCacheClearer(c CacheClearer) Option {
	return func(f *Facade) {
		f.cache = c
	}
}

func WithQuotaEstimator(e QuotaEstimator) Option {
	return func(f *Facade) {
		f.estimator = e
	}
}

// WithPrune overrides the prefixes and retention used by quota recovery.
func WithPrune(retention time.Duration, prefixes ...string) Option {
	return func(f *Facade) {
		if retention > 0 {
			f.cfg.Prune.Retention = retention
		}
		if len(prefixes) > 0 {
			f.cfg.Prune.Prefixes = prefixes
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(f *Facade) {
		if now != nil {
			f.now = now
		}
	}
}
