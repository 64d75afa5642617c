// SPDX-License-Identifier: MPL-2.0

package wsserver

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"shkernel/internal/app/execute"
	"shkernel/internal/config"
	"shkernel/internal/core/serverbase"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const readHeaderTimeout = 10 * time.Second

type (
	// Clock supplies message timestamps.
	Clock interface {
		Now() time.Time
	}

	systemClock struct{}

	// KernelFactory builds the kernel of one connection. Output of the
	// engine must go to stdout and stderr so execute replies can carry it.
	KernelFactory func(stdout, stderr io.Writer) (*execute.Session, error)

	// Server serves one kernel per websocket connection. A Server is
	// single-use: once stopped or failed, create a new one.
	Server struct {
		cfg       Config
		newKernel KernelFactory
		base      *serverbase.Base
		logger    *log.Logger
		clock     Clock
		version   string
		upgrader  websocket.Upgrader

		baseOpts []serverbase.Option
	}

	// Option configures a Server.
	Option func(*Server)
)

func (systemClock) Now() time.Time { return time.Now() }

// WithLogger sets the server logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClock sets the clock used to date messages.
func WithClock(c Clock) Option {
	return func(s *Server) {
		s.clock = c
	}
}

// WithVersion sets the implementation version reported by kernel_info_reply.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithBaseOptions passes lifecycle options such as timeouts to the server base.
func WithBaseOptions(opts ...serverbase.Option) Option {
	return func(s *Server) {
		s.baseOpts = append(s.baseOpts, opts...)
	}
}

// New creates a Server. newKernel is called once per connection.
func New(cfg Config, newKernel KernelFactory, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		newKernel: newKernel,
		logger:    log.NewWithOptions(os.Stderr, log.Options{Prefix: "websocket"}),
		clock:     systemClock{},
		version:   "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.base = serverbase.NewBase("websocket", append([]serverbase.Option{serverbase.WithLogger(s.logger)}, s.baseOpts...)...)
	return s
}

// NewKernelFactory returns a KernelFactory building kernels from cfg.
func NewKernelFactory(cfg *config.Config, baseDir string, logger *log.Logger) KernelFactory {
	return func(stdout, stderr io.Writer) (*execute.Session, error) {
		return execute.BuildKernel(execute.BuildKernelOptions{
			Config:  cfg,
			BaseDir: baseDir,
			Stdout:  stdout,
			Stderr:  stderr,
			Logger:  logger,
		})
	}
}

// Start validates the configuration and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	hooks, err := s.hooks()
	if err != nil {
		return err
	}
	return s.base.Start(ctx, s.cfg.Addr(), hooks)
}

// Run serves until ctx is canceled or the server fails.
func (s *Server) Run(ctx context.Context) error {
	hooks, err := s.hooks()
	if err != nil {
		return err
	}
	return s.base.Run(ctx, s.cfg.Addr(), hooks)
}

// Stop closes every connection and shuts the server down.
func (s *Server) Stop() error { return s.base.Stop() }

// Addr returns the bound address, empty before Start.
func (s *Server) Addr() string { return s.base.Addr() }

// URL returns the websocket URL clients connect to, empty before Start.
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == "" {
		return ""
	}
	return (&url.URL{Scheme: "ws", Host: addr, Path: s.cfg.Path}).String()
}

// State returns the lifecycle state.
func (s *Server) State() serverbase.State { return s.base.State() }

// Err reports fatal errors from the serve loop.
func (s *Server) Err() <-chan error { return s.base.Err() }

func (s *Server) hooks() (serverbase.Hooks, error) {
	if ok, errs := s.cfg.IsValid(); !ok {
		return serverbase.Hooks{}, errs[0]
	}
	if s.newKernel == nil {
		return serverbase.Hooks{}, errors.New("websocket server has no kernel factory")
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleUpgrade)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          s.logger.StandardLog(log.StandardLogOptions{ForceLevel: log.WarnLevel}),
	}
	return serverbase.Hooks{
		Serve: srv.Serve,
		Shutdown: func(ctx context.Context) error {
			err := srv.Shutdown(ctx)
			if errors.Is(err, context.DeadlineExceeded) {
				return srv.Close()
			}
			return err
		},
		Closed: http.ErrServerClosed,
	}, nil
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if !s.base.IsRunning() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		s.logger.Warn("websocket upgrade failed", "remote-addr", r.RemoteAddr, "error", err)
		return
	}

	c := newConnection(s, ws, r.RemoteAddr)
	s.base.Go(c.run)
}

// checkOrigin accepts requests without an Origin header, origins whose host
// matches the request host, and configured origin prefixes.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	if len(s.cfg.AllowedOrigins) > 0 {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return sameHost(u.Host, r.Host)
}

func sameHost(a, b string) bool {
	ha, _, err := net.SplitHostPort(a)
	if err != nil {
		ha = a
	}
	hb, _, err := net.SplitHostPort(b)
	if err != nil {
		hb = b
	}
	return strings.EqualFold(ha, hb)
}
