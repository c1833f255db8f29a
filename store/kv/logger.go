package kv

import "github.com/kochabx/studycore/log"

// gormLogWriter 将 gorm 日志写入 log.Logger
type gormLogWriter struct {
	logger *log.Logger
}

func (w gormLogWriter) Printf(format string, args ...any) {
	w.logger.Debug().Str("component", "gorm").Msgf(format, args...)
}
