package offline

import (
	"errors"
	"net/url"
	"time"

	"github.com/kochabx/studycore/core/tag"
)

// Config of the offline cache manager.
type Config struct {
	// CachePrefix and Version form the generation name, e.g. physics-audit-v3.
	CachePrefix string   `json:"cache_prefix" mapstructure:"cache_prefix" default:"physics-audit"`
	Version     string   `json:"version" mapstructure:"version" default:"v1"`
	Manifest    []string `json:"manifest" mapstructure:"manifest" default:"/,/index.html"`
	// Upstream is the origin assets are fetched from.
	Upstream          string        `json:"upstream" mapstructure:"upstream" validate:"omitempty,url"`
	AppShell          string        `json:"app_shell" mapstructure:"app_shell" default:"/index.html"`
	FragmentPrefixes  []string      `json:"fragment_prefixes" mapstructure:"fragment_prefixes" default:"/templates/,/components/"`
	FetchTimeout      time.Duration `json:"fetch_timeout" mapstructure:"fetch_timeout" default:"15s"`
	RevalidateTimeout time.Duration `json:"revalidate_timeout" mapstructure:"revalidate_timeout" default:"10s"`
	InstallWorkers    int           `json:"install_workers" mapstructure:"install_workers" default:"4"`
	// Backend selects the generation store: memory or minio.
	Backend string `json:"backend" mapstructure:"backend" default:"memory" validate:"oneof=memory minio"`
}

func (c *Config) Init() error {
	if err := tag.ApplyDefaults(c); err != nil {
		return err
	}
	if c.Upstream == "" {
		return errors.New("offline: upstream is required")
	}
	if _, err := url.Parse(c.Upstream); err != nil {
		return err
	}
	return nil
}

// Name of the generation for version.
func (c *Config) Name(version string) string {
	return c.CachePrefix + "-" + version
}
