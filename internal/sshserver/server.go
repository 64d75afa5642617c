// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"shkernel/internal/app/execute"
	"shkernel/internal/config"
	"shkernel/internal/core/serverbase"
	"shkernel/internal/repl"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/logging"
)

type (
	// SessionEnv describes the client a kernel is built for.
	SessionEnv struct {
		User       string
		RemoteAddr string
		// Stdin is nil unless the session runs a single command.
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// KernelFactory builds the kernel of one SSH session.
	KernelFactory func(env SessionEnv) (*execute.Session, error)

	// Server serves one kernel per SSH session. A Server is single-use:
	// once stopped or failed, create a new one.
	Server struct {
		cfg       Config
		newKernel KernelFactory
		base      *serverbase.Base
		logger    *log.Logger

		baseOpts    []serverbase.Option
		sessionOpts []repl.Option
	}

	// Option configures a Server.
	Option func(*Server)
)

// WithLogger sets the server logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithBaseOptions passes lifecycle options such as timeouts to the server base.
func WithBaseOptions(opts ...serverbase.Option) Option {
	return func(s *Server) {
		s.baseOpts = append(s.baseOpts, opts...)
	}
}

// WithSessionOptions adds options to every read-eval-print session, such as
// prompts or verbose errors.
func WithSessionOptions(opts ...repl.Option) Option {
	return func(s *Server) {
		s.sessionOpts = append(s.sessionOpts, opts...)
	}
}

// New creates a Server. newKernel is called once per SSH session.
func New(cfg Config, newKernel KernelFactory, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		newKernel: newKernel,
		logger:    log.NewWithOptions(os.Stderr, log.Options{Prefix: "ssh"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.base = serverbase.NewBase("ssh", append([]serverbase.Option{serverbase.WithLogger(s.logger)}, s.baseOpts...)...)
	return s
}

// NewKernelFactory returns a KernelFactory building kernels from cfg. The
// client user and address are exported as SSH_USER and SSH_REMOTE_ADDR.
func NewKernelFactory(cfg *config.Config, baseDir string, logger *log.Logger) KernelFactory {
	return func(env SessionEnv) (*execute.Session, error) {
		return execute.BuildKernel(execute.BuildKernelOptions{
			Config:  cfg,
			BaseDir: baseDir,
			Stdin:   env.Stdin,
			Stdout:  env.Stdout,
			Stderr:  env.Stderr,
			Logger:  logger,
			ExtraEnv: map[string]string{
				"SSH_USER":        env.User,
				"SSH_REMOTE_ADDR": env.RemoteAddr,
			},
		})
	}
}

// Start validates the configuration and begins accepting connections. It
// returns once the listener is bound.
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

// Stop shuts the server down, closing sessions that outlive the shutdown
// timeout.
func (s *Server) Stop() error { return s.base.Stop() }

// Addr returns the bound address, empty before Start.
func (s *Server) Addr() string { return s.base.Addr() }

// State returns the lifecycle state.
func (s *Server) State() serverbase.State { return s.base.State() }

// Err reports fatal errors from the serve loop.
func (s *Server) Err() <-chan error { return s.base.Err() }

func (s *Server) hooks() (serverbase.Hooks, error) {
	if ok, errs := s.cfg.IsValid(); !ok {
		return serverbase.Hooks{}, errs[0]
	}
	if s.newKernel == nil {
		return serverbase.Hooks{}, errors.New("ssh server has no kernel factory")
	}

	srv, err := s.newSSHServer()
	if err != nil {
		return serverbase.Hooks{}, err
	}
	return serverbase.Hooks{
		Serve: srv.Serve,
		Shutdown: func(ctx context.Context) error {
			err := srv.Shutdown(ctx)
			if errors.Is(err, context.DeadlineExceeded) {
				s.logger.Warn("closing sessions still open after shutdown timeout")
				return srv.Close()
			}
			return err
		},
		Closed: ssh.ErrServerClosed,
	}, nil
}

func (s *Server) newSSHServer() (*ssh.Server, error) {
	if err := os.MkdirAll(filepath.Dir(s.cfg.HostKeyPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create host key directory: %w", err)
	}

	opts := []ssh.Option{
		wish.WithHostKeyPath(s.cfg.HostKeyPath),
		wish.WithMiddleware(
			s.sessionMiddleware,
			logging.StructuredMiddlewareWithLogger(s.logger, log.InfoLevel),
		),
	}
	if s.cfg.Token != "" {
		token := []byte(s.cfg.Token)
		opts = append(opts, wish.WithPasswordAuth(func(_ ssh.Context, password string) bool {
			return subtle.ConstantTimeCompare([]byte(password), token) == 1
		}))
	}
	if s.cfg.AuthorizedKeysPath != "" {
		opts = append(opts, wish.WithAuthorizedKeys(s.cfg.AuthorizedKeysPath))
	}
	if s.cfg.IdleTimeout > 0 {
		opts = append(opts, wish.WithIdleTimeout(s.cfg.IdleTimeout))
	}

	srv, err := wish.NewServer(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to configure SSH server: %w", err)
	}
	return srv, nil
}

func (s *Server) sessionMiddleware(next ssh.Handler) ssh.Handler {
	return func(sess ssh.Session) {
		s.handle(sess)
		next(sess)
	}
}
