package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"

	"github.com/kochabx/studycore/core/tag"
)

// Logger 日志记录器
type Logger struct {
	zerolog.Logger
	redactor *Redactor
	closer   io.Closer
}

func init() {
	zerolog.TimeFieldFormat = time.DateTime
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
}

// Close 关闭底层文件 writer
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func newLogger(w io.Writer, opts ...Option) *Logger {
	l := &Logger{}

	// 先收集脱敏规则，再构建 zerolog
	for _, opt := range opts {
		opt.prepare(l)
	}
	if l.redactor != nil {
		w = l.redactor.Wrap(w)
	}

	l.Logger = zerolog.New(w).With().Timestamp().Logger()
	for _, opt := range opts {
		opt.apply(l)
	}
	return l
}

// New 创建输出到控制台的 Logger
func New(opts ...Option) *Logger {
	return newLogger(consoleWriter(os.Stdout), opts...)
}

// NewWriter 创建输出到任意 writer 的 Logger，输出为 JSON
func NewWriter(w io.Writer, opts ...Option) *Logger {
	return newLogger(w, opts...)
}

// NewFile 创建输出到轮转文件的 Logger
func NewFile(c FileConfig, opts ...Option) (*Logger, error) {
	if err := tag.ApplyDefaults(&c); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	w, err := fileWriter(c)
	if err != nil {
		return nil, err
	}

	l := newLogger(w, opts...)
	if closer, ok := w.(io.Closer); ok {
		l.closer = closer
	}
	return l, nil
}

// NewMulti 同时输出到文件和控制台
func NewMulti(c FileConfig, opts ...Option) (*Logger, error) {
	if err := tag.ApplyDefaults(&c); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	fw, err := fileWriter(c)
	if err != nil {
		return nil, err
	}

	l := newLogger(zerolog.MultiLevelWriter(fw, consoleWriter(os.Stdout)), opts...)
	if closer, ok := fw.(io.Closer); ok {
		l.closer = closer
	}
	return l, nil
}

// FromConfig 按配置创建 Logger，输出方式为 console、file 或 multi
func FromConfig(c Config) (*Logger, error) {
	if err := tag.ApplyDefaults(&c); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}

	opts := []Option{WithLevel(level)}
	if c.Caller {
		opts = append(opts, WithCaller())
	}
	if c.Redact {
		opts = append(opts, WithRedact(DefaultRules()...))
	}

	switch c.Output {
	case "file":
		return NewFile(c.File, opts...)
	case "multi":
		return NewMulti(c.File, opts...)
	default:
		return New(opts...), nil
	}
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.DateTime,
		FormatLevel: func(i any) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		},
	}
}
