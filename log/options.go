package log

import "github.com/rs/zerolog"

// Option Logger 选项
//
// prepare 在 writer 构建前执行，apply 在 zerolog.Logger 构建后执行。
type Option struct {
	prepare func(*Logger)
	apply   func(*Logger)
}

func noop(*Logger) {}

// WithLevel 设置日志级别
func WithLevel(level zerolog.Level) Option {
	return Option{prepare: noop, apply: func(l *Logger) {
		l.Logger = l.Logger.Level(level)
	}}
}

// WithCaller 记录调用位置
func WithCaller() Option {
	return Option{prepare: noop, apply: func(l *Logger) {
		l.Logger = l.Logger.With().Caller().Logger()
	}}
}

// WithComponent 为每条日志附加 component 字段
func WithComponent(name string) Option {
	return Option{prepare: noop, apply: func(l *Logger) {
		l.Logger = l.Logger.With().Str("component", name).Logger()
	}}
}

// WithRedact 在写出前按规则脱敏
func WithRedact(rules ...Rule) Option {
	return Option{apply: noop, prepare: func(l *Logger) {
		if l.redactor == nil {
			l.redactor = NewRedactor()
		}
		l.redactor.Add(rules...)
	}}
}
