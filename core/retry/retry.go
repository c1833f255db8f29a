// Package retry 提供重试策略与重试循环
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Strategy 重试策略
type Strategy interface {
	// NextRetry 返回第 retryCount 次重试前的等待时间，从 0 开始
	NextRetry(retryCount int) time.Duration
}

// ExponentialBackoff 指数退避
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     bool
}

// NewExponentialBackoff 创建指数退避策略，Multiplier 小于等于 1 时按 2 处理
func NewExponentialBackoff(base, maxDelay time.Duration, multiplier float64, jitter bool) *ExponentialBackoff {
	if multiplier <= 1 {
		multiplier = 2
	}
	return &ExponentialBackoff{BaseDelay: base, MaxDelay: maxDelay, Multiplier: multiplier, Jitter: jitter}
}

// NextRetry delay = min(base * multiplier^n, max)，抖动为 ±25%
func (e *ExponentialBackoff) NextRetry(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}

	delay := float64(e.BaseDelay) * math.Pow(e.Multiplier, float64(retryCount))
	if e.MaxDelay > 0 && delay > float64(e.MaxDelay) {
		delay = float64(e.MaxDelay)
	}
	if e.Jitter && delay > 0 {
		delay += delay * 0.25 * (rand.Float64()*2 - 1)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// FixedDelay 固定延迟
type FixedDelay time.Duration

func (f FixedDelay) NextRetry(int) time.Duration {
	return time.Duration(f)
}

// NoRetry 不等待
type NoRetry struct{}

func (NoRetry) NextRetry(int) time.Duration {
	return 0
}

// Policy 重试循环配置
type Policy struct {
	// MaxAttempts 总尝试次数，包括第一次
	MaxAttempts int
	Strategy    Strategy
	// Retryable 判断错误是否值得重试，nil 表示全部重试
	Retryable func(error) bool
	// OnRetry 每次重试前调用
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Do 执行 fn，失败时按策略等待后重试。
// 返回最后一次的错误；ctx 取消时返回 ctx.Err()。
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	strategy := p.Strategy
	if strategy == nil {
		strategy = NoRetry{}
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}

		delay := strategy.NextRetry(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
