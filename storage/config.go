package storage

import (
	"time"

	"github.com/kochabx/studycore/core/tag"
)

// Config of the storage facade.
type Config struct {
	Prune PruneConfig `json:"prune" mapstructure:"prune"`
	// FallbackQuotaBytes is reported by EstimateQuota when neither the
	// platform nor the store declares a limit.
	FallbackQuotaBytes int64 `json:"fallback_quota_bytes" mapstructure:"fallback_quota_bytes" default:"52428800"`
}

// PruneConfig selects what quota recovery may delete.
type PruneConfig struct {
	Prefixes  []string      `json:"prefixes" mapstructure:"prefixes" default:"analytics_history:"`
	Retention time.Duration `json:"retention" mapstructure:"retention" default:"720h"`
}

func (c *Config) Init() error {
	return tag.ApplyDefaults(c)
}
