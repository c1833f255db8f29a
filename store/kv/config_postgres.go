package kv

import (
	"strconv"
	"strings"
)

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host           string `json:"host" mapstructure:"host" default:"localhost"`
	Port           int    `json:"port" mapstructure:"port" default:"5432"`
	User           string `json:"user" mapstructure:"user" default:"postgres"`
	Password       string `json:"password" mapstructure:"password"`
	Database       string `json:"database" mapstructure:"database" default:"studycore"`
	SSLMode        string `json:"sslmode" mapstructure:"sslmode" default:"disable"`
	TimeZone       string `json:"timezone" mapstructure:"timezone" default:"UTC"`
	ConnectTimeout int    `json:"connect_timeout" mapstructure:"connect_timeout" default:"10"`
}

// DSN 生成 PostgreSQL 连接串
func (c PostgresConfig) DSN() string {
	var b strings.Builder
	b.Grow(128)

	b.WriteString("host=")
	b.WriteString(c.Host)
	b.WriteString(" port=")
	b.WriteString(strconv.Itoa(c.Port))
	b.WriteString(" user=")
	b.WriteString(c.User)
	if c.Password != "" {
		b.WriteString(" password=")
		b.WriteString(c.Password)
	}
	b.WriteString(" dbname=")
	b.WriteString(c.Database)
	b.WriteString(" sslmode=")
	b.WriteString(c.SSLMode)
	b.WriteString(" TimeZone=")
	b.WriteString(c.TimeZone)
	b.WriteString(" connect_timeout=")
	b.WriteString(strconv.Itoa(c.ConnectTimeout))

	return b.String()
}
