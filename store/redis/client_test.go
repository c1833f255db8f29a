package redis

import (
	"context"
	"testing"
	"time"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c, err := New(ctx, Single("localhost:6379"), WithDebug(50*time.Millisecond))
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewRequiresAddrs(t *testing.T) {
	if _, err := New(context.Background(), &Config{}); err != ErrEmptyAddrs {
		t.Fatalf("expected ErrEmptyAddrs, got %v", err)
	}
}

func TestKeyPrefix(t *testing.T) {
	c := NewFromUniversal(nil, &Config{})
	if got := c.Key("session"); got != "studycore:session" {
		t.Errorf("Key() = %q", got)
	}
}

func TestPing(t *testing.T) {
	c := newTestClient(t)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	ctx := context.Background()
	key := c.Key("test:ping")
	if err := c.UniversalClient().Set(ctx, key, "1", time.Minute).Err(); err != nil {
		t.Fatal(err)
	}
	defer c.UniversalClient().Del(ctx, key)

	if _, err := c.UniversalClient().Get(ctx, c.Key("test:missing")).Result(); err != ErrNil {
		t.Errorf("expected ErrNil, got %v", err)
	}
}
