package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/studycore/errors"
	"github.com/kochabx/studycore/offline"
	"github.com/kochabx/studycore/transport/http/middleware"
)

const (
	MessagePath = "/sw/message"
	SocketPath  = "/sw/ws"
)

// Controller is the offline cache as seen by the local server: it serves
// every unmatched request and answers control channel messages.
type Controller interface {
	http.Handler
	Handle(ctx context.Context, msg offline.Message) (offline.Message, error)
}

// NewRouter mounts the control endpoints, the websocket hub and, as the
// fallback for every other path, the offline cache. ctl may be nil when no
// upstream is configured; only health and metrics are served then.
func NewRouter(cfg Config, ctl Controller, socket http.Handler) *gin.Engine {
	gin.SetMode(cfg.Mode)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.GinLogger())
	if len(cfg.AllowOrigins) > 0 {
		r.Use(middleware.Cors(cfg.AllowOrigins...))
	}

	if socket != nil {
		r.GET(SocketPath, gin.WrapH(socket))
	}
	if ctl == nil {
		return r
	}

	r.POST(MessagePath, handleMessage(ctl))
	r.NoRoute(gin.WrapH(ctl))
	return r
}

func handleMessage(ctl Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg offline.Message
		if err := c.ShouldBindJSON(&msg); err != nil {
			GinJSONE(c, http.StatusBadRequest, errors.BadRequest("invalid message: %v", err))
			return
		}

		reply, err := ctl.Handle(c.Request.Context(), msg)
		if err != nil {
			code := http.StatusInternalServerError
			if errors.Is(err, offline.ErrUnknownMessage) {
				code = http.StatusBadRequest
			}
			c.Error(err)
			GinJSONE(c, code, err)
			return
		}
		GinJSON(c, reply)
	}
}
