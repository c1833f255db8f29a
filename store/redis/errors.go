package redis

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNil key 不存在
	ErrNil = redis.Nil

	// ErrEmptyAddrs 地址列表为空
	ErrEmptyAddrs = errors.New("redis: addrs cannot be empty")
)
