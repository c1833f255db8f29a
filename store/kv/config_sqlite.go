package kv

import (
	"strconv"
	"strings"
)

// SQLiteConfig SQLite 配置，默认驱动
type SQLiteConfig struct {
	FilePath    string `json:"file_path" mapstructure:"file_path" default:"./studycore.db"`
	JournalMode string `json:"journal_mode" mapstructure:"journal_mode" default:"WAL"`
	BusyTimeout int    `json:"busy_timeout" mapstructure:"busy_timeout" default:"5000"`
	SyncMode    string `json:"sync_mode" mapstructure:"sync_mode" default:"NORMAL"`
}

// DSN 生成 SQLite 连接串
func (c SQLiteConfig) DSN() string {
	var b strings.Builder
	b.Grow(96)

	b.WriteString("file:")
	b.WriteString(c.FilePath)
	b.WriteString("?_journal_mode=")
	b.WriteString(c.JournalMode)
	b.WriteString("&_busy_timeout=")
	b.WriteString(strconv.Itoa(c.BusyTimeout))
	b.WriteString("&_synchronous=")
	b.WriteString(c.SyncMode)

	return b.String()
}
