// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

// echoHooks serves a line echo protocol and closes connections on shutdown.
func echoHooks() Hooks {
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	return Hooks{
		Serve: func(l net.Listener) error {
			for {
				c, err := l.Accept()
				if err != nil {
					return err
				}
				mu.Lock()
				conns = append(conns, c)
				mu.Unlock()
				go func() { _, _ = io.Copy(c, c) }()
			}
		},
		Shutdown: func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			for _, c := range conns {
				_ = c.Close()
			}
			return nil
		},
	}
}

func newQuietBase(opts ...Option) *Base {
	return NewBase("test-server", append([]Option{WithLogger(log.New(io.Discard))}, opts...)...)
}

func TestStartServeStop(t *testing.T) {
	t.Parallel()

	b := newQuietBase()
	if b.State() != StateCreated {
		t.Fatalf("initial state = %s", b.State())
	}
	if err := b.Start(context.Background(), "127.0.0.1:0", echoHooks()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !b.IsRunning() {
		t.Fatalf("state after Start = %s, want running", b.State())
	}
	if b.Port() == 0 {
		t.Fatalf("Port() = 0, addr %q", b.Addr())
	}

	conn, err := net.Dial("tcp", b.Addr())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("ping")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(conn, buf); err != nil || string(buf) != "ping" {
		t.Fatalf("echo = %q, %v", buf, err)
	}

	if err := b.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if b.State() != StateStopped {
		t.Errorf("state after Stop = %s, want stopped", b.State())
	}
	if _, ok := <-b.Err(); ok {
		t.Error("Err() should be closed after Stop")
	}
	if b.Context().Err() == nil {
		t.Error("server context should be canceled after Stop")
	}
	if err := b.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestStopBeforeStart(t *testing.T) {
	t.Parallel()

	b := newQuietBase()
	if err := b.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if b.State() != StateStopped {
		t.Errorf("state = %s, want stopped", b.State())
	}
	if err := b.Start(context.Background(), "127.0.0.1:0", echoHooks()); err == nil {
		t.Error("Start() after Stop should fail")
	}
}

func TestStartTwice(t *testing.T) {
	t.Parallel()

	b := newQuietBase()
	if err := b.Start(context.Background(), "127.0.0.1:0", echoHooks()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = b.Stop() })

	if err := b.Start(context.Background(), "127.0.0.1:0", echoHooks()); err == nil {
		t.Error("second Start() should fail")
	}
}

func TestStartFailures(t *testing.T) {
	t.Parallel()

	occupied := newQuietBase()
	if err := occupied.Start(context.Background(), "127.0.0.1:0", echoHooks()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = occupied.Stop() })

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name  string
		ctx   context.Context
		addr  string
		hooks Hooks
		want  error
	}{
		{name: "address in use", ctx: context.Background(), addr: occupied.Addr(), hooks: echoHooks()},
		{name: "canceled context", ctx: canceled, addr: "127.0.0.1:0", hooks: echoHooks(), want: context.Canceled},
		{name: "no serve function", ctx: context.Background(), addr: "127.0.0.1:0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := newQuietBase()
			err := b.Start(tt.ctx, tt.addr, tt.hooks)
			if err == nil {
				_ = b.Stop()
				t.Fatal("Start() should fail")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if tt.hooks.Serve != nil {
				if b.State() != StateFailed {
					t.Errorf("state = %s, want failed", b.State())
				}
				if !errors.Is(b.Wait(), err) {
					t.Errorf("Wait() = %v, want %v", b.Wait(), err)
				}
			}
		})
	}
}

func TestRunReportsServeFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	b := newQuietBase()
	err := b.Run(context.Background(), "127.0.0.1:0", Hooks{
		Serve: func(net.Listener) error {
			time.Sleep(10 * time.Millisecond)
			return boom
		},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	if b.State() != StateStopped {
		t.Errorf("state = %s, want stopped", b.State())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	closed := errors.New("server closed")
	stop := make(chan struct{})
	hooks := Hooks{
		Serve: func(net.Listener) error {
			<-stop
			return closed
		},
		Shutdown: func(context.Context) error {
			close(stop)
			return nil
		},
		Closed: closed,
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := newQuietBase()
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, "127.0.0.1:0", hooks) }()

	readyCtx, readyCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer readyCancel()
	if err := b.WaitForReady(readyCtx); err != nil {
		t.Fatalf("WaitForReady() error = %v", err)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestGoIsTracked(t *testing.T) {
	t.Parallel()

	b := newQuietBase()
	if err := b.Start(context.Background(), "127.0.0.1:0", echoHooks()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var finished bool
	b.Go(func(ctx context.Context) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished = true
	})

	if err := b.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !finished {
		t.Error("Stop() returned before the tracked goroutine")
	}
}

func TestConcurrentStop(t *testing.T) {
	t.Parallel()

	b := newQuietBase()
	if err := b.Start(context.Background(), "127.0.0.1:0", echoHooks()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			_ = b.Stop()
			_ = b.State()
		})
	}
	wg.Wait()

	if b.State() != StateStopped {
		t.Errorf("state = %s, want stopped", b.State())
	}
}

func TestState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state    State
		name     string
		valid    bool
		terminal bool
	}{
		{StateCreated, "created", true, false},
		{StateStarting, "starting", true, false},
		{StateRunning, "running", true, false},
		{StateStopping, "stopping", true, false},
		{StateStopped, "stopped", true, true},
		{StateFailed, "failed", true, true},
		{State(42), "unknown", false, false},
		{State(-1), "unknown", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.state.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			ok, errs := tt.state.IsValid()
			if ok != tt.valid {
				t.Errorf("IsValid() = %v, want %v", ok, tt.valid)
			}
			if !ok && !errors.Is(errs[0], ErrInvalidState) {
				t.Errorf("error = %v, want ErrInvalidState", errs[0])
			}
			if got := tt.state.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}
