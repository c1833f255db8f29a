package syncer

import (
	"time"

	"github.com/kochabx/studycore/core/tag"
)

type Config struct {
	Enabled bool `json:"enabled" mapstructure:"enabled" default:"true"`
	// Interval is a cron spec; descriptors such as @every 60s are accepted.
	Interval string `json:"interval" mapstructure:"interval" default:"@every 60s"`
	Endpoint string `json:"endpoint" mapstructure:"endpoint" default:"/api/v1/user/data/sync"`
	// SerializeTimeout bounds how long a sync waits for the package to be encoded.
	SerializeTimeout time.Duration `json:"serialize_timeout" mapstructure:"serialize_timeout" default:"10s"`
	Workers          int           `json:"workers" mapstructure:"workers" default:"2"`
}

func (c *Config) Init() error {
	return tag.ApplyDefaults(c)
}
