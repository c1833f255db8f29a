package auth

import (
	"time"

	"github.com/kochabx/studycore/core/tag"
)

type Config struct {
	// APIBase is the remote API origin used for refresh, logout and sync.
	APIBase string `json:"api_base" mapstructure:"api_base" validate:"omitempty,url"`
	// TokenURL is the identity provider's token endpoint for the code grant.
	TokenURL    string `json:"token_url" mapstructure:"token_url" validate:"omitempty,url"`
	RefreshPath string `json:"refresh_path" mapstructure:"refresh_path" default:"/api/v1/auth/refresh"`
	LogoutPath  string `json:"logout_path" mapstructure:"logout_path" default:"/api/v1/auth/logout"`
	ClientID    string `json:"client_id" mapstructure:"client_id"`
	RedirectURI string `json:"redirect_uri" mapstructure:"redirect_uri"`
	// TenantID, when set, must match the tid claim of every access token.
	TenantID string `json:"tenant_id" mapstructure:"tenant_id"`

	RefreshBuffer  time.Duration `json:"refresh_buffer" mapstructure:"refresh_buffer" default:"5m"`
	ClockSkew      time.Duration `json:"clock_skew" mapstructure:"clock_skew" default:"5m"`
	RequestTimeout time.Duration `json:"request_timeout" mapstructure:"request_timeout" default:"30s"`
	Retry          RetryConfig   `json:"retry" mapstructure:"retry"`

	SessionBackend string        `json:"session_backend" mapstructure:"session_backend" default:"kv" validate:"oneof=kv redis"`
	SessionKey     string        `json:"session_key" mapstructure:"session_key" default:"auth_session"`
	SessionTTL     time.Duration `json:"session_ttl" mapstructure:"session_ttl" default:"720h"`
}

type RetryConfig struct {
	MaxAttempts int           `json:"max_attempts" mapstructure:"max_attempts" default:"3"`
	BaseDelay   time.Duration `json:"base_delay" mapstructure:"base_delay" default:"1s"`
	MaxDelay    time.Duration `json:"max_delay" mapstructure:"max_delay" default:"10s"`
}

func (c *Config) Init() error {
	return tag.ApplyDefaults(c)
}
