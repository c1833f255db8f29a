package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	klog "github.com/kochabx/studycore/log"
)

var custom *klog.Logger

// SetLogger 替换中间件使用的日志，默认跟随 log.G
func SetLogger(logger *klog.Logger) {
	custom = logger
}

func logger() *klog.Logger {
	if custom != nil {
		return custom
	}
	return klog.G
}

func skippedPathPrefixes(c *gin.Context, prefixes ...string) bool {
	path := c.Request.URL.Path
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
