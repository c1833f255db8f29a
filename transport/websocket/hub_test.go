package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/studycore/offline"
)

func newHubServer(t *testing.T, opts ...Option) (*Hub, string) {
	t.Helper()
	hub := NewHub(opts...)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		_ = hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) offline.Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg offline.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestRequestReply(t *testing.T) {
	hub, url := newHubServer(t)
	hub.OnMessage(func(_ context.Context, msg offline.Message) (offline.Message, error) {
		if msg.Type != offline.MsgGetVersion {
			return offline.Message{}, offline.ErrUnknownMessage
		}
		return offline.Message{Type: offline.MsgVersion, Version: "v3"}, nil
	})

	conn := dial(t, url)

	tests := []struct {
		name    string
		send    string
		typ     string
		wantErr bool
	}{
		{"查询版本", `{"type":"GET_VERSION"}`, offline.MsgVersion, false},
		{"未知消息", `{"type":"NOPE"}`, "ERROR", true},
		{"非法JSON", `not json`, "ERROR", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.send)))
			reply := read(t, conn)
			assert.Equal(t, tt.typ, reply.Type)
			assert.Equal(t, tt.wantErr, reply.Error != "")
		})
	}
}

func TestHandlerOutlivesWriteTimeout(t *testing.T) {
	hub, url := newHubServer(t, WithConfig(Config{WriteTimeout: 50 * time.Millisecond, HandlerTimeout: 2 * time.Second}))
	hub.OnMessage(func(ctx context.Context, msg offline.Message) (offline.Message, error) {
		select {
		case <-time.After(200 * time.Millisecond):
		case <-ctx.Done():
			return offline.Message{}, ctx.Err()
		}
		return offline.Message{Type: offline.MsgCacheCleared}, nil
	})

	conn := dial(t, url)
	require.NoError(t, conn.WriteJSON(offline.Message{Type: offline.MsgClearCache}))
	reply := read(t, conn)
	assert.Equal(t, offline.MsgCacheCleared, reply.Type)
	assert.Empty(t, reply.Error)
}

func TestBroadcast(t *testing.T) {
	hub, url := newHubServer(t)
	a := dial(t, url)
	b := dial(t, url)
	require.Eventually(t, func() bool { return hub.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.Broadcast(offline.Message{Type: offline.MsgControllerChange, Version: "v2"})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := read(t, conn)
		assert.Equal(t, offline.MsgControllerChange, msg.Type)
		assert.Equal(t, "v2", msg.Version)
	}
}

func TestSkipWaitingPushesReload(t *testing.T) {
	hub, url := newHubServer(t)
	hub.OnMessage(func(_ context.Context, msg offline.Message) (offline.Message, error) {
		hub.Broadcast(offline.Message{Type: offline.MsgControllerChange})
		if !msg.Incidental {
			hub.Broadcast(offline.Message{Type: offline.MsgReload})
		}
		return offline.Message{Type: offline.MsgActivated}, nil
	})

	conn := dial(t, url)
	require.NoError(t, conn.WriteJSON(offline.Message{Type: offline.MsgSkipWaiting}))

	got := map[string]bool{}
	for range 3 {
		got[read(t, conn).Type] = true
	}
	assert.Equal(t, map[string]bool{
		offline.MsgControllerChange: true,
		offline.MsgReload:           true,
		offline.MsgActivated:        true,
	}, got)
}

func TestClose(t *testing.T) {
	hub, url := newHubServer(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Close())
	assert.Zero(t, hub.Len())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))

	// 关闭后拒绝新连接
	late := dial(t, url)
	_ = late.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}

func TestCheckOrigin(t *testing.T) {
	hub := NewHub(WithConfig(Config{AllowOrigins: []string{"http://localhost:5173"}}))

	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"无来源", "", "svc:8080", true},
		{"白名单", "http://localhost:5173", "svc:8080", true},
		{"同源", "http://svc:8080", "svc:8080", true},
		{"其他来源", "http://evil.example", "svc:8080", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/sw/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, hub.checkOrigin(r))
		})
	}
}
