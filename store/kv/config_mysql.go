package kv

import (
	"fmt"
	"time"
)

// MySQLConfig MySQL 配置
type MySQLConfig struct {
	Host     string        `json:"host" mapstructure:"host" default:"localhost"`
	Port     int           `json:"port" mapstructure:"port" default:"3306"`
	User     string        `json:"user" mapstructure:"user" default:"root"`
	Password string        `json:"password" mapstructure:"password"`
	Database string        `json:"database" mapstructure:"database" default:"studycore"`
	Charset  string        `json:"charset" mapstructure:"charset" default:"utf8mb4"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout" default:"10s"`
}

// DSN 生成 MySQL 连接串
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=true&loc=UTC&timeout=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.Charset, c.Timeout)
}
