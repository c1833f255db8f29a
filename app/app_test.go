package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeServer struct {
	stop     chan struct{}
	once     sync.Once
	runErr   error
	shutdown bool
}

func newFakeServer() *fakeServer {
	return &fakeServer{stop: make(chan struct{})}
}

func (s *fakeServer) Run() error {
	if s.runErr != nil {
		return s.runErr
	}
	<-s.stop
	return nil
}

func (s *fakeServer) Shutdown(context.Context) error {
	s.once.Do(func() {
		s.shutdown = true
		close(s.stop)
	})
	return nil
}

func TestNew(t *testing.T) {
	app := New(
		WithServers(newFakeServer(), nil, newFakeServer()),
		WithStart("noop", func(context.Context) error { return nil }),
		WithClose("noop", func(context.Context) error { return nil }, 0),
	)

	info := app.Info()
	if info.ServerCount != 2 || info.HookCount != 1 || info.CloseCount != 1 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.Started {
		t.Fatal("expected application not to be started")
	}
}

func TestStartStop(t *testing.T) {
	srv := newFakeServer()
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	app := New(
		WithServers(srv),
		WithStart("storage", record("start:storage")),
		WithStart("sync", record("start:sync")),
		WithClose("sync", record("close:sync"), time.Second),
		WithClose("kv", record("close:kv"), time.Second),
	)

	go func() {
		time.Sleep(50 * time.Millisecond)
		app.Stop()
	}()

	if err := app.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !srv.shutdown {
		t.Fatal("server was not shut down")
	}

	want := []string{"start:storage", "start:sync", "close:sync", "close:kv"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}

	if err := app.Start(); err != ErrAlreadyStarted {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestStartHookFailure(t *testing.T) {
	closed := false
	boom := errors.New("store unavailable")
	app := New(
		WithStart("storage", func(context.Context) error { return boom }),
		WithClose("kv", func(context.Context) error { closed = true; return nil }, time.Second),
	)

	if err := app.Start(); !errors.Is(err, boom) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if !closed {
		t.Fatal("close functions must run after a failed start")
	}
}

func TestServerFailure(t *testing.T) {
	bad := newFakeServer()
	bad.runErr = errors.New("address in use")
	good := newFakeServer()

	app := New(WithServers(bad, good))
	if err := app.Start(); err == nil || err.Error() != "address in use" {
		t.Fatalf("expected run error, got %v", err)
	}
	if !good.shutdown {
		t.Fatal("healthy server should be shut down")
	}
}

func TestAddServer(t *testing.T) {
	app := New()
	if err := app.AddServer(nil); err == nil {
		t.Fatal("expected error when adding nil server")
	}
	if err := app.AddServer(newFakeServer()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	app.started = true
	if err := app.AddServer(newFakeServer()); err != ErrAlreadyStarted {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestCloseTimeoutAndPanic(t *testing.T) {
	app := New()
	if err := app.runCloseTask(CloseFunc{Name: "slow", Timeout: 20 * time.Millisecond, Fn: func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return nil
	}}); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	if err := app.runCloseTask(CloseFunc{Name: "panic", Timeout: time.Second, Fn: func(context.Context) error {
		panic("boom")
	}}); err != ErrClosePanic {
		t.Fatalf("expected ErrClosePanic, got %v", err)
	}
}
