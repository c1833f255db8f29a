package redis

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kochabx/studycore/log"
)

// Option 客户端选项
type Option func(*clientOptions)

type clientOptions struct {
	hooks           []redis.Hook
	enableTracing   bool
	enableMetrics   bool
	enableDebug     bool
	slowQueryThresh time.Duration
	logger          *log.Logger
}

// WithHook 添加自定义 Hook
func WithHook(h redis.Hook) Option {
	return func(o *clientOptions) {
		o.hooks = append(o.hooks, h)
	}
}

// WithTracing 启用 OpenTelemetry 追踪
func WithTracing() Option {
	return func(o *clientOptions) {
		o.enableTracing = true
	}
}

// WithMetrics 启用 OpenTelemetry 指标
func WithMetrics() Option {
	return func(o *clientOptions) {
		o.enableMetrics = true
	}
}

// WithDebug 记录每条命令，超过阈值的命令以 warn 级别记录
func WithDebug(slowQueryThresh time.Duration) Option {
	return func(o *clientOptions) {
		o.enableDebug = true
		o.slowQueryThresh = slowQueryThresh
	}
}

// WithLogger 设置日志记录器
func WithLogger(l *log.Logger) Option {
	return func(o *clientOptions) {
		o.logger = l
	}
}
