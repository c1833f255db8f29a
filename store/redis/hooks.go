package redis

import (
	"context"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kochabx/studycore/log"
)

// debugHook 记录命令耗时并检测慢查询，不记录参数以免泄露令牌
type debugHook struct {
	logger *log.Logger
	slow   time.Duration
}

func (h *debugHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		start := time.Now()
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.logger.Error().Str("addr", addr).Dur("duration", time.Since(start)).Err(err).Msg("redis dial failed")
		}
		return conn, err
	}
}

func (h *debugHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.record(cmd.FullName(), 1, time.Since(start), err)
		return err
	}
}

func (h *debugHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		h.record("pipeline", len(cmds), time.Since(start), err)
		return err
	}
}

func (h *debugHook) record(name string, n int, d time.Duration, err error) {
	switch {
	case err != nil && err != redis.Nil:
		h.logger.Warn().Str("cmd", name).Int("count", n).Dur("duration", d).Err(err).Msg("redis command failed")
	case h.slow > 0 && d > h.slow:
		h.logger.Warn().Str("cmd", name).Int("count", n).Dur("duration", d).Dur("threshold", h.slow).Msg("slow redis command")
	default:
		h.logger.Debug().Str("cmd", name).Int("count", n).Dur("duration", d).Msg("redis command")
	}
}
