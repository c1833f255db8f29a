package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	b := NewExponentialBackoff(100*time.Millisecond, time.Second, 2, false)

	tests := []struct {
		name  string
		count int
		want  time.Duration
	}{
		{"第一次", 0, 100 * time.Millisecond},
		{"第二次", 1, 200 * time.Millisecond},
		{"第三次", 2, 400 * time.Millisecond},
		{"封顶", 5, time.Second},
		{"负数", -1, 100 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.NextRetry(tt.count); got != tt.want {
				t.Errorf("NextRetry(%d) = %v, want %v", tt.count, got, tt.want)
			}
		})
	}
}

func TestExponentialBackoffJitter(t *testing.T) {
	b := NewExponentialBackoff(100*time.Millisecond, time.Second, 2, true)
	for i := 0; i < 50; i++ {
		d := b.NextRetry(1)
		if d < 150*time.Millisecond || d > 250*time.Millisecond {
			t.Fatalf("jitter out of ±25%%: %v", d)
		}
	}
}

func TestDo(t *testing.T) {
	errTransient := errors.New("transient")
	errFatal := errors.New("fatal")

	t.Run("重试后成功", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), Policy{MaxAttempts: 3, Strategy: FixedDelay(time.Millisecond)}, func(context.Context) error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return nil
		})
		if err != nil || calls != 3 {
			t.Fatalf("err=%v calls=%d", err, calls)
		}
	})

	t.Run("次数耗尽", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), Policy{MaxAttempts: 2}, func(context.Context) error {
			calls++
			return errTransient
		})
		if !errors.Is(err, errTransient) || calls != 2 {
			t.Fatalf("err=%v calls=%d", err, calls)
		}
	})

	t.Run("不可重试", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), Policy{
			MaxAttempts: 5,
			Retryable:   func(err error) bool { return !errors.Is(err, errFatal) },
		}, func(context.Context) error {
			calls++
			return errFatal
		})
		if !errors.Is(err, errFatal) || calls != 1 {
			t.Fatalf("err=%v calls=%d", err, calls)
		}
	})

	t.Run("上下文取消", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Do(ctx, Policy{MaxAttempts: 3, Strategy: FixedDelay(time.Hour)}, func(context.Context) error {
			return errTransient
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err=%v", err)
		}
	})
}
