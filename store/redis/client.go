package redis

import (
	"context"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"github.com/kochabx/studycore/log"
)

// Client Redis 客户端，支持单机、集群与哨兵
type Client struct {
	client redis.UniversalClient
	config *Config
	logger *log.Logger
}

// New 创建客户端并执行一次 PING
func New(ctx context.Context, cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil || len(cfg.Addrs) == 0 {
		return nil, ErrEmptyAddrs
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}

	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = log.G
	}

	c := &Client{
		config: cfg,
		logger: logger,
		client: redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:        cfg.Addrs,
			MasterName:   cfg.MasterName,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			PoolSize:     cfg.PoolSize,
			MaxRetries:   cfg.MaxRetries,
		}),
	}

	if err := c.setupHooks(o); err != nil {
		_ = c.client.Close()
		return nil, err
	}
	if err := c.Ping(ctx); err != nil {
		_ = c.client.Close()
		return nil, err
	}

	c.logger.Debug().Str("mode", cfg.mode()).Strs("addrs", cfg.Addrs).Msg("redis client created")
	return c, nil
}

// NewFromUniversal 包装已有客户端，测试时使用
func NewFromUniversal(client redis.UniversalClient, cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	_ = cfg.ApplyDefaults()
	return &Client{client: client, config: cfg, logger: log.G}
}

func (c *Client) setupHooks(o *clientOptions) error {
	for _, h := range o.hooks {
		c.client.AddHook(h)
	}
	if o.enableTracing {
		if err := redisotel.InstrumentTracing(c.client); err != nil {
			return err
		}
	}
	if o.enableMetrics {
		if err := redisotel.InstrumentMetrics(c.client); err != nil {
			return err
		}
	}
	if o.enableDebug {
		c.client.AddHook(&debugHook{logger: c.logger, slow: o.slowQueryThresh})
	}
	return nil
}

// UniversalClient 返回底层客户端
func (c *Client) UniversalClient() redis.UniversalClient {
	return c.client
}

// Key 为 name 加上配置的前缀
func (c *Client) Key(name string) string {
	return c.config.KeyPrefix + name
}

// Ping 测试连接
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close 关闭客户端
func (c *Client) Close() error {
	err := c.client.Close()
	c.logger.Debug().Msg("redis client closed")
	return err
}
