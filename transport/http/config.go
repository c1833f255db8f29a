package http

import (
	"time"

	"github.com/kochabx/studycore/core/tag"
)

// Config 本地服务配置
type Config struct {
	Addr              string        `json:"addr" mapstructure:"addr" default:":8080"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" mapstructure:"read_header_timeout" default:"10s"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout" default:"10s"`
	Mode              string        `json:"mode" mapstructure:"mode" default:"release" validate:"oneof=debug release test"`
	// AllowOrigins 为空时不输出 CORS 头
	AllowOrigins []string      `json:"allow_origins" mapstructure:"allow_origins"`
	Metrics      MetricsOption `json:"metrics" mapstructure:"metrics"`
	Health       HealthOption  `json:"health" mapstructure:"health"`
}

func (c *Config) Init() error {
	return tag.ApplyDefaults(c)
}

type MetricsOption struct {
	Disabled bool   `json:"disabled" mapstructure:"disabled"`
	Path     string `json:"path" mapstructure:"path" default:"/metrics"`
}

func (m *MetricsOption) init() error {
	return tag.ApplyDefaults(m)
}

type HealthOption struct {
	Disabled bool   `json:"disabled" mapstructure:"disabled"`
	Path     string `json:"path" mapstructure:"path" default:"/healthz"`
}

func (h *HealthOption) init() error {
	return tag.ApplyDefaults(h)
}
