package kv

import (
	"time"

	"github.com/kochabx/studycore/log"
)

// Option 存储选项
type Option func(*options)

type options struct {
	logger         *log.Logger
	now            func() time.Time
	connectTimeout time.Duration
	slowQuery      time.Duration
}

func defaultOptions() *options {
	return &options{
		now:            time.Now,
		connectTimeout: 10 * time.Second,
		slowQuery:      200 * time.Millisecond,
	}
}

// WithLogger 设置日志记录器
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithClock 设置时钟，记录时间戳使用
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithConnectTimeout 设置打开数据库时的 ping 超时
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}

// WithSlowQuery 设置慢查询阈值
func WithSlowQuery(d time.Duration) Option {
	return func(o *options) {
		o.slowQuery = d
	}
}
