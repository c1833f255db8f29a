package log

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"gopkg.in/natefinch/lumberjack.v2"
)

func fileWriter(c FileConfig) (io.Writer, error) {
	base := filepath.Join(c.Filepath, c.Filename)

	switch c.RotateMode {
	case "time":
		w, err := rotatelogs.New(
			base+".%Y%m%d%H%M."+c.FileExt,
			rotatelogs.WithLinkName(base+"."+c.FileExt),
			rotatelogs.WithMaxAge(time.Duration(c.Time.MaxAge)*time.Hour),
			rotatelogs.WithRotationTime(time.Duration(c.Time.RotationTime)*time.Hour),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create time rotate writer: %w", err)
		}
		return w, nil
	case "size":
		return &lumberjack.Logger{
			Filename:   base + "." + c.FileExt,
			MaxSize:    c.Size.MaxSize,
			MaxBackups: c.Size.MaxBackups,
			MaxAge:     c.Size.MaxAge,
			Compress:   c.Size.Compress,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported rotate mode: %q", c.RotateMode)
	}
}
