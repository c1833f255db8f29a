package websocket

import (
	"time"

	"github.com/kochabx/studycore/core/tag"
)

// Config 控制通道连接配置
type Config struct {
	// 写超时时间
	WriteTimeout time.Duration `json:"write_timeout" mapstructure:"write_timeout" default:"10s"`
	// 单条控制消息的处理超时，与写超时分开配置
	HandlerTimeout time.Duration `json:"handler_timeout" mapstructure:"handler_timeout" default:"30s"`
	// pong 等待时间，超时视为断开
	PongWait time.Duration `json:"pong_wait" mapstructure:"pong_wait" default:"60s"`
	// ping 间隔，必须小于 PongWait
	PingInterval time.Duration `json:"ping_interval" mapstructure:"ping_interval" default:"50s"`
	// 单条消息上限
	MaxMessageSize int64 `json:"max_message_size" mapstructure:"max_message_size" default:"4096"`
	// 每个连接的发送队列长度，写满的连接会被断开
	SendBuffer        int  `json:"send_buffer" mapstructure:"send_buffer" default:"16"`
	ReadBufferSize    int  `json:"read_buffer_size" mapstructure:"read_buffer_size" default:"1024"`
	WriteBufferSize   int  `json:"write_buffer_size" mapstructure:"write_buffer_size" default:"1024"`
	EnableCompression bool `json:"enable_compression" mapstructure:"enable_compression"`
	// AllowOrigins 为空时只接受同源连接
	AllowOrigins []string `json:"allow_origins" mapstructure:"allow_origins"`
}

func (c *Config) Init() error {
	return tag.ApplyDefaults(c)
}
