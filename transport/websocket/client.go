package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kochabx/studycore/offline"
)

// client 单个页面的连接
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	remote string
	send   chan []byte

	once sync.Once
	done chan struct{}
}

func newClient(h *Hub, conn *websocket.Conn) *client {
	return &client{
		hub:    h,
		conn:   conn,
		remote: conn.RemoteAddr().String(),
		send:   make(chan []byte, h.cfg.SendBuffer),
		done:   make(chan struct{}),
	}
}

// enqueue 非阻塞入队，队列满时返回 false
func (c *client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) stop() {
	c.once.Do(func() {
		close(c.done)
	})
}

func (c *client) readLoop() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	cfg := c.hub.cfg
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn().Err(err).Str("remote", c.remote).Msg("websocket read failed")
			}
			return
		}

		reply := c.dispatch(data)
		out, err := json.Marshal(reply)
		if err != nil {
			continue
		}
		if !c.enqueue(out) {
			return
		}
	}
}

func (c *client) dispatch(data []byte) offline.Message {
	var msg offline.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return offline.Message{Type: "ERROR", Error: "invalid message"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.hub.cfg.HandlerTimeout)
	defer cancel()

	reply, err := c.hub.handle(ctx, msg)
	if err != nil {
		c.hub.logger.Warn().Err(err).Str("type", msg.Type).Msg("control message failed")
		if reply.Type == "" {
			reply.Type = "ERROR"
		}
		reply.Error = err.Error()
	}
	return reply
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeWait()))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.hub.unregister(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeWait()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.unregister(c)
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeWait()))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
