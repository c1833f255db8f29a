package kv

import "encoding/json"

// SchemaVersion 当前表结构版本
const SchemaVersion = 1

// Record 键值记录
type Record struct {
	Key       string `gorm:"column:key;primaryKey;size:512" json:"key"`
	Value     []byte `gorm:"column:value" json:"value"`
	Timestamp int64  `gorm:"column:timestamp;index;not null" json:"timestamp"` // 写入时间，毫秒
}

func (Record) TableName() string {
	return "records"
}

// Size 键与值的字节数
func (r Record) Size() int64 {
	return int64(len(r.Key) + len(r.Value))
}

// Raw 以 JSON 原文返回值
func (r Record) Raw() json.RawMessage {
	return json.RawMessage(r.Value)
}

// Item 批量写入项
type Item struct {
	Key   string
	Value any
}

type schemaMeta struct {
	Name    string `gorm:"column:name;primaryKey;size:64"`
	Version int    `gorm:"column:version;not null"`
}

func (schemaMeta) TableName() string {
	return "meta"
}
