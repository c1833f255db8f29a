package log

// Config 日志配置
type Config struct {
	Level  string     `json:"level" mapstructure:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Output string     `json:"output" mapstructure:"output" default:"console" validate:"oneof=console file multi"`
	Caller bool       `json:"caller" mapstructure:"caller"`
	Redact bool       `json:"redact" mapstructure:"redact" default:"true"`
	File   FileConfig `json:"file" mapstructure:"file"`
}

// FileConfig 日志文件配置
type FileConfig struct {
	Filepath   string           `json:"filepath" mapstructure:"filepath" default:"log"`
	Filename   string           `json:"filename" mapstructure:"filename" default:"studycore"`
	FileExt    string           `json:"file_ext" mapstructure:"file_ext" default:"log"`
	RotateMode string           `json:"rotate_mode" mapstructure:"rotate_mode" default:"size" validate:"oneof=size time"`
	Time       TimeRotateConfig `json:"time" mapstructure:"time"`
	Size       SizeRotateConfig `json:"size" mapstructure:"size"`
}

// TimeRotateConfig 按时间轮转，单位小时
type TimeRotateConfig struct {
	MaxAge       int `json:"max_age" mapstructure:"max_age" default:"168"`
	RotationTime int `json:"rotation_time" mapstructure:"rotation_time" default:"24"`
}

// SizeRotateConfig 按大小轮转
type SizeRotateConfig struct {
	MaxSize    int  `json:"max_size" mapstructure:"max_size" default:"50"` // MB
	MaxBackups int  `json:"max_backups" mapstructure:"max_backups" default:"5"`
	MaxAge     int  `json:"max_age" mapstructure:"max_age" default:"30"` // 天
	Compress   bool `json:"compress" mapstructure:"compress"`
}
