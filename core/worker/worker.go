// Package worker 将耗时计算（如大对象序列化）放到协程池执行，
// 调用方通过待决调用表等待结果，超时后放弃等待。
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/kochabx/studycore/log"
)

var (
	ErrCallTimeout = errors.New("worker: call timed out")
	ErrPoolClosed  = errors.New("worker: pool closed")
)

type result struct {
	value any
	err   error
}

// Pool 协程池与待决调用表
type Pool struct {
	pool    *ants.Pool
	timeout time.Duration
	logger  *log.Logger

	mu      sync.Mutex
	pending map[string]chan result
	closed  bool
}

// Option 配置选项
type Option func(*Pool)

// WithTimeout 设置单次调用的最长等待时间，默认 10s
func WithTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(l *log.Logger) Option {
	return func(p *Pool) {
		p.logger = l
	}
}

// New 创建协程池，size 小于等于 0 时使用 4
func New(size int, opts ...Option) (*Pool, error) {
	if size <= 0 {
		size = 4
	}

	p := &Pool{
		timeout: 10 * time.Second,
		pending: make(map[string]chan result),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.G
	}

	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(v any) {
		p.logger.Error().Interface("panic", v).Msg("worker task panicked")
	}))
	if err != nil {
		return nil, fmt.Errorf("worker: create pool: %w", err)
	}
	p.pool = pool
	return p, nil
}

// Call 在池中执行 fn 并等待结果。
// 超过等待时间或 ctx 结束时返回错误并移除待决项，fn 的迟到结果被丢弃。
func (p *Pool) Call(ctx context.Context, fn func() (any, error)) (any, error) {
	id := uuid.NewString()
	ch := make(chan result, 1)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.pending[id] = ch
	p.mu.Unlock()

	err := p.pool.Submit(func() {
		var r result
		func() {
			defer func() {
				if v := recover(); v != nil {
					r.err = fmt.Errorf("worker: task panicked: %v", v)
				}
			}()
			r.value, r.err = fn()
		}()
		p.resolve(id, r)
	})
	if err != nil {
		p.forget(id)
		return nil, fmt.Errorf("worker: submit: %w", err)
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.value, r.err
	case <-timer.C:
		p.forget(id)
		p.logger.Warn().Str("call_id", id).Dur("timeout", p.timeout).Msg("worker call released after timeout")
		return nil, ErrCallTimeout
	case <-ctx.Done():
		p.forget(id)
		return nil, ctx.Err()
	}
}

func (p *Pool) resolve(id string, r result) {
	p.mu.Lock()
	ch, ok := p.pending[id]
	delete(p.pending, id)
	p.mu.Unlock()

	if !ok {
		p.logger.Debug().Str("call_id", id).Msg("dropping late worker result")
		return
	}
	ch <- r
}

func (p *Pool) forget(id string) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

// Pending 返回尚未完成的调用数
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Close 释放协程池，之后的调用返回 ErrPoolClosed
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.pool.Release()
}

// Run 是 Call 的泛型版本
func Run[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var zero T
	v, err := p.Call(ctx, func() (any, error) { return fn() })
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// Marshal 在池中执行 JSON 序列化；p 为 nil 时直接在当前协程执行
func Marshal(ctx context.Context, p *Pool, v any) ([]byte, error) {
	if p == nil {
		return json.Marshal(v)
	}
	return Run(ctx, p, func() ([]byte, error) { return json.Marshal(v) })
}
