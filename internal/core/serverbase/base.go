// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

type (
	// Hooks are the protocol-specific parts of a server.
	Hooks struct {
		// Serve accepts connections on l until the server is shut down.
		Serve func(l net.Listener) error
		// Shutdown stops accepting and drains open connections before ctx ends.
		Shutdown func(ctx context.Context) error
		// Closed is the error Serve returns once Shutdown was called, such as
		// http.ErrServerClosed. net.ErrClosed is always expected.
		Closed error
	}

	// Base is a single-use server lifecycle. Once stopped or failed, create a
	// new instance.
	Base struct {
		name   string
		logger *log.Logger

		state   atomic.Int32
		mu      sync.Mutex
		lastErr error

		ctx       context.Context
		cancel    context.CancelFunc
		wg        sync.WaitGroup
		startedCh chan struct{}
		errCh     chan error

		listener net.Listener
		hooks    Hooks

		startupTimeout  time.Duration
		shutdownTimeout time.Duration
	}
)

// NewBase creates a Base. name prefixes log lines and errors.
func NewBase(name string, opts ...Option) *Base {
	b := &Base{
		name:            name,
		logger:          log.NewWithOptions(os.Stderr, log.Options{Prefix: name}),
		startedCh:       make(chan struct{}),
		errCh:           make(chan error, 1),
		startupTimeout:  DefaultStartupTimeout,
		shutdownTimeout: DefaultShutdownTimeout,
	}
	b.state.Store(int32(StateCreated))
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Base) State() State { return State(b.state.Load()) }

func (b *Base) IsRunning() bool { return b.State() == StateRunning }

// Err delivers failures that happen after Start returned. It is closed by Stop.
func (b *Base) Err() <-chan error { return b.errCh }

// LastError returns the error that moved the server to StateFailed.
func (b *Base) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Logger returns the logger servers should use for connection events.
func (b *Base) Logger() *log.Logger { return b.logger }

// Context is canceled when the server stops. It is nil before Start.
func (b *Base) Context() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx
}

// Start listens on addr and serves in the background. It returns once the
// server accepts connections, or with the reason it could not.
func (b *Base) Start(ctx context.Context, addr string, hooks Hooks) error {
	if hooks.Serve == nil {
		return fmt.Errorf("%s: no serve function", b.name)
	}
	if err := b.transitionToStarting(ctx); err != nil {
		return err
	}

	startupCtx, cancel := context.WithTimeout(ctx, b.startupTimeout)
	defer cancel()

	var lc net.ListenConfig
	l, err := lc.Listen(startupCtx, "tcp", addr)
	if err != nil {
		b.fail(fmt.Errorf("failed to listen on %s: %w", addr, err))
		return b.LastError()
	}

	b.mu.Lock()
	b.listener = l
	b.hooks = hooks
	b.mu.Unlock()

	b.Go(func(context.Context) { b.serve(l) })

	select {
	case <-b.startedCh:
		b.logger.Info("server started", "address", l.Addr().String())
		return nil
	case err := <-b.errCh:
		b.fail(err)
		return err
	case <-startupCtx.Done():
		_ = l.Close()
		b.fail(fmt.Errorf("startup timeout: %w", startupCtx.Err()))
		return b.LastError()
	}
}

// Run starts the server and serves until ctx is done or the server fails,
// then stops it. It fits an errgroup running several servers.
func (b *Base) Run(ctx context.Context, addr string, hooks Hooks) error {
	if err := b.Start(ctx, addr, hooks); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return b.Stop()
	case err := <-b.errCh:
		stopErr := b.Stop()
		return errors.Join(err, stopErr)
	}
}

// Stop shuts the server down and waits for its goroutines. Calling it again,
// or on a server that never started, is a no-op.
func (b *Base) Stop() error {
	if !b.transitionToStopping() {
		b.wg.Wait()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.shutdownTimeout)
	defer cancel()

	b.mu.Lock()
	hooks, l := b.hooks, b.listener
	b.mu.Unlock()

	var err error
	if hooks.Shutdown != nil {
		if err = hooks.Shutdown(ctx); b.isClosed(err) {
			err = nil
		}
	}
	if l != nil {
		_ = l.Close()
	}

	b.wg.Wait()
	b.state.Store(int32(StateStopped))
	close(b.errCh)
	b.logger.Info("server stopped")
	return err
}

// Wait blocks until every server goroutine returned and reports the failure,
// if any.
func (b *Base) Wait() error {
	b.wg.Wait()
	if b.State() == StateFailed {
		return b.LastError()
	}
	return nil
}

// Addr returns the bound address, or "" before the listener exists.
func (b *Base) Addr() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

// Port returns the bound port, useful when listening on port 0.
func (b *Base) Port() int {
	_, port, err := net.SplitHostPort(b.Addr())
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return 0
	}
	return n
}

// WaitForReady blocks until the server runs or ctx is done.
func (b *Base) WaitForReady(ctx context.Context) error {
	select {
	case <-b.startedCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s: %w", b.name, ctx.Err())
	}
}

// Go runs fn in a goroutine that Stop waits for. fn receives the server
// context, which is canceled when stopping begins.
func (b *Base) Go(fn func(ctx context.Context)) {
	ctx := b.Context()
	b.wg.Go(func() { fn(ctx) })
}

// SendError reports an asynchronous failure without blocking. Errors beyond
// the channel buffer are logged and dropped.
func (b *Base) SendError(err error) {
	select {
	case b.errCh <- err:
	default:
		b.logger.Error("dropped server error", "error", err)
	}
}

func (b *Base) serve(l net.Listener) {
	if b.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(b.startedCh)
	}
	if err := b.hooks.Serve(l); err != nil && !b.isClosed(err) {
		b.SendError(fmt.Errorf("%s: serve: %w", b.name, err))
	}
}

func (b *Base) isClosed(err error) bool {
	return err == nil ||
		errors.Is(err, net.ErrClosed) ||
		(b.hooks.Closed != nil && errors.Is(err, b.hooks.Closed))
}

func (b *Base) transitionToStarting(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		b.fail(fmt.Errorf("context canceled before start: %w", err))
		return b.LastError()
	}
	if !b.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start %s in state %s", b.name, b.State())
	}

	b.mu.Lock()
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.mu.Unlock()
	return nil
}

func (b *Base) fail(err error) {
	b.mu.Lock()
	b.lastErr = err
	cancel := b.cancel
	b.mu.Unlock()

	b.state.Store(int32(StateFailed))
	if cancel != nil {
		cancel()
	}
}

func (b *Base) transitionToStopping() bool {
	for {
		current := b.State()
		switch current {
		case StateCreated:
			if b.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				return false
			}
		case StateStarting, StateRunning:
			if b.state.CompareAndSwap(int32(current), int32(StateStopping)) {
				b.mu.Lock()
				cancel := b.cancel
				b.mu.Unlock()
				if cancel != nil {
					cancel()
				}
				return true
			}
		default:
			return false
		}
	}
}
