package kv

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kochabx/studycore/core/tag"
)

// Driver 数据库驱动类型
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

func (d Driver) String() string {
	return string(d)
}

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int           `json:"max_idle_conns" mapstructure:"max_idle_conns" default:"1"`
	MaxOpenConns    int           `json:"max_open_conns" mapstructure:"max_open_conns" default:"1"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime" default:"1h"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" mapstructure:"conn_max_idle_time" default:"10m"`
}

// Config 键值存储配置
type Config struct {
	Driver   Driver         `json:"driver" mapstructure:"driver" default:"sqlite" validate:"oneof=sqlite postgres mysql"`
	SQLite   SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `json:"postgres" mapstructure:"postgres"`
	MySQL    MySQLConfig    `json:"mysql" mapstructure:"mysql"`
	Pool     PoolConfig     `json:"pool" mapstructure:"pool"`

	// LogLevel gorm 日志级别：silent、error、warn、info
	LogLevel string `json:"log_level" mapstructure:"log_level" default:"silent"`

	// QuotaBytes 键与值的总字节上限，0 表示不限制
	QuotaBytes int64 `json:"quota_bytes" mapstructure:"quota_bytes"`

	initialized bool
}

// Init 应用默认值，可重复调用
func (c *Config) Init() error {
	if c.initialized {
		return nil
	}
	if err := tag.ApplyDefaults(c); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// DSN 返回当前驱动的连接串
func (c *Config) DSN() (string, error) {
	switch c.Driver {
	case DriverSQLite:
		return c.SQLite.DSN(), nil
	case DriverPostgres:
		return c.Postgres.DSN(), nil
	case DriverMySQL:
		return c.MySQL.DSN(), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, c.Driver)
	}
}

func (c *Config) dialector() (gorm.Dialector, error) {
	dsn, err := c.DSN()
	if err != nil {
		return nil, err
	}

	switch c.Driver {
	case DriverPostgres:
		return postgres.Open(dsn), nil
	case DriverMySQL:
		return mysql.Open(dsn), nil
	default:
		return sqlite.Open(dsn), nil
	}
}

func (c *Config) gormLogLevel() logger.LogLevel {
	switch strings.ToLower(c.LogLevel) {
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Silent
	}
}
