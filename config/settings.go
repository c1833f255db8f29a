package config

import (
	"path/filepath"

	"github.com/kochabx/studycore/auth"
	"github.com/kochabx/studycore/log"
	"github.com/kochabx/studycore/offline"
	"github.com/kochabx/studycore/storage"
	"github.com/kochabx/studycore/store/kv"
	"github.com/kochabx/studycore/store/oss/minio"
	"github.com/kochabx/studycore/store/redis"
	"github.com/kochabx/studycore/syncer"
	khttp "github.com/kochabx/studycore/transport/http"
	"github.com/kochabx/studycore/transport/websocket"
)

const (
	DefaultFile      = "studycore.yaml"
	DefaultEnvPrefix = "STUDYCORE"
)

var DefaultPaths = []string{".", "/etc/studycore"}

// Settings 服务完整配置
type Settings struct {
	Log     log.Config       `json:"log" mapstructure:"log"`
	Store   kv.Config        `json:"store" mapstructure:"store"`
	Storage storage.Config   `json:"storage" mapstructure:"storage"`
	Offline offline.Config   `json:"offline" mapstructure:"offline"`
	Auth    auth.Config      `json:"auth" mapstructure:"auth"`
	Sync    syncer.Config    `json:"sync" mapstructure:"sync"`
	Server  khttp.Config     `json:"server" mapstructure:"server"`
	Socket  websocket.Config `json:"socket" mapstructure:"socket"`
	Redis   redis.Config     `json:"redis" mapstructure:"redis"`
	Minio   minio.Config     `json:"minio" mapstructure:"minio"`
	Legacy  LegacyConfig     `json:"legacy" mapstructure:"legacy"`
}

// LegacyConfig 旧版数据来源，只在首次初始化时迁移一次
type LegacyConfig struct {
	Source string `json:"source" mapstructure:"source" default:"none" validate:"oneof=none file redis"`
	// Path JSON 文件路径，Source 为 file 时使用
	Path string `json:"path" mapstructure:"path" default:"legacy.json"`
	// Hash Redis hash 名称，Source 为 redis 时使用
	Hash string `json:"hash" mapstructure:"hash" default:"legacy_storage"`
}

// Load 读取配置文件，文件不存在时使用默认值和环境变量
func Load(file string, opts ...Option) (*Settings, *Config, error) {
	if file == "" {
		file = DefaultFile
	}
	paths := DefaultPaths
	if dir := filepath.Dir(file); dir != "." {
		paths = []string{dir}
	}

	s := new(Settings)
	base := []Option{
		WithFile(filepath.Base(file), paths...),
		WithEnvPrefix(DefaultEnvPrefix),
		WithOptionalFile(),
	}
	c := New(s, append(base, opts...)...)
	if err := c.Load(); err != nil {
		return nil, nil, err
	}
	return s, c, nil
}
