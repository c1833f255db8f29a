package minio

import (
	"errors"
	"time"

	"github.com/kochabx/studycore/core/tag"
)

// Config MinIO 客户端配置
type Config struct {
	Endpoint        string        `json:"endpoint" mapstructure:"endpoint"`
	AccessKeyID     string        `json:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string        `json:"secret_access_key" mapstructure:"secret_access_key"`
	UseSSL          bool          `json:"use_ssl" mapstructure:"use_ssl"`
	Region          string        `json:"region" mapstructure:"region"`
	Bucket          string        `json:"bucket" mapstructure:"bucket" default:"studycore-offline"`
	RequestTimeout  time.Duration `json:"request_timeout" mapstructure:"request_timeout" default:"30s"`
}

// Enabled 是否配置了服务地址
func (c *Config) Enabled() bool {
	return c.Endpoint != ""
}

// Validate 应用默认值并校验
func (c *Config) Validate() error {
	if err := tag.ApplyDefaults(c); err != nil {
		return err
	}
	if c.Endpoint == "" {
		return errors.New("minio: endpoint cannot be empty")
	}
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return errors.New("minio: credentials cannot be empty")
	}
	if c.Bucket == "" {
		return ErrEmptyBucketName
	}
	return nil
}
