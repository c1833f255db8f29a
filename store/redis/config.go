package redis

import (
	"time"

	"github.com/kochabx/studycore/core/tag"
)

// Config Redis 配置，Addrs 多于一个时为集群，设置 MasterName 时为哨兵
type Config struct {
	Addrs      []string `json:"addrs" mapstructure:"addrs"`
	MasterName string   `json:"master_name" mapstructure:"master_name"`
	Username   string   `json:"username" mapstructure:"username"`
	Password   string   `json:"password" mapstructure:"password"`
	DB         int      `json:"db" mapstructure:"db"`

	DialTimeout  time.Duration `json:"dial_timeout" mapstructure:"dial_timeout" default:"5s"`
	ReadTimeout  time.Duration `json:"read_timeout" mapstructure:"read_timeout" default:"3s"`
	WriteTimeout time.Duration `json:"write_timeout" mapstructure:"write_timeout" default:"3s"`
	PoolSize     int           `json:"pool_size" mapstructure:"pool_size"`
	MaxRetries   int           `json:"max_retries" mapstructure:"max_retries"`

	// KeyPrefix 本服务写入的所有 key 的前缀
	KeyPrefix string `json:"key_prefix" mapstructure:"key_prefix" default:"studycore:"`
}

// ApplyDefaults 应用默认值
func (c *Config) ApplyDefaults() error {
	return tag.ApplyDefaults(c)
}

// Enabled 是否配置了地址
func (c *Config) Enabled() bool {
	return len(c.Addrs) > 0
}

// Single 单机配置
func Single(addr string) *Config {
	return &Config{Addrs: []string{addr}}
}

func (c *Config) mode() string {
	switch {
	case c.MasterName != "":
		return "sentinel"
	case len(c.Addrs) > 1:
		return "cluster"
	default:
		return "single"
	}
}
