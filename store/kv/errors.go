package kv

import "errors"

var (
	// ErrStoreUnavailable 驱动无法打开或连接不可用
	ErrStoreUnavailable = errors.New("kv: store unavailable")

	// ErrQuotaExceeded 写入会超出配额，或底层存储已满
	ErrQuotaExceeded = errors.New("kv: quota exceeded")

	// ErrWriteFailure 其他写入错误
	ErrWriteFailure = errors.New("kv: write failure")

	// ErrReadFailure 读取或解码错误
	ErrReadFailure = errors.New("kv: read failure")

	// ErrUnsupportedDriver 不支持的驱动
	ErrUnsupportedDriver = errors.New("kv: unsupported driver")

	// ErrClosed 存储已被显式关闭
	ErrClosed = errors.New("kv: store closed")
)
