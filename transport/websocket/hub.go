package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kochabx/studycore/log"
	"github.com/kochabx/studycore/offline"
)

var ErrHubClosed = errors.New("websocket: hub closed")

// Handler answers one control message from a client.
type Handler func(ctx context.Context, msg offline.Message) (offline.Message, error)

var _ offline.Notifier = (*Hub)(nil)

// Hub keeps the connected pages. Requests from a page are answered on the
// same connection; Broadcast pushes lifecycle messages to all of them.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu      sync.RWMutex
	handler Handler
	clients map[*client]struct{}
	closed  bool
}

type Option func(*Hub)

func WithConfig(cfg Config) Option {
	return func(h *Hub) {
		_ = cfg.Init()
		h.cfg = cfg
	}
}

func WithLogger(l *log.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		logger:  log.G,
		clients: map[*client]struct{}{},
	}
	_ = h.cfg.Init()
	for _, opt := range opts {
		opt(h)
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:    h.cfg.ReadBufferSize,
		WriteBufferSize:   h.cfg.WriteBufferSize,
		EnableCompression: h.cfg.EnableCompression,
		CheckOrigin:       h.checkOrigin,
	}
	return h
}

// OnMessage sets the handler for incoming control messages.
func (h *Hub) OnMessage(fn Handler) {
	h.mu.Lock()
	h.handler = fn
	h.mu.Unlock()
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写了错误响应
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newClient(h, conn)
	if err := h.register(c); err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}

	go c.writeLoop()
	c.readLoop()
}

// Broadcast implements offline.Notifier. Slow clients are dropped rather
// than blocking the sender.
func (h *Hub) Broadcast(msg offline.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("encode broadcast failed")
		return
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		if !c.enqueue(data) {
			slow = append(slow, c)
		}
	}
	n := len(h.clients)
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn().Str("remote", c.remote).Msg("dropping slow websocket client")
		h.unregister(c)
	}
	h.logger.Debug().Str("type", msg.Type).Int("clients", n).Msg("broadcast")
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
	return nil
}

func (h *Hub) register(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	h.clients[c] = struct{}{}
	h.logger.Debug().Str("remote", c.remote).Int("clients", len(h.clients)).Msg("websocket client connected")
	return nil
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.stop()
	}
}

func (h *Hub) handle(ctx context.Context, msg offline.Message) (offline.Message, error) {
	h.mu.RLock()
	fn := h.handler
	h.mu.RUnlock()
	if fn == nil {
		return offline.Message{}, offline.ErrUnknownMessage
	}
	return fn(ctx, msg)
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(h.cfg.AllowOrigins, "*") || slices.Contains(h.cfg.AllowOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

func (h *Hub) writeWait() time.Duration {
	return h.cfg.WriteTimeout
}
