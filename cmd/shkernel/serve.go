// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"shkernel/internal/issue"
	"shkernel/internal/repl"
	"shkernel/internal/sshserver"
	"shkernel/internal/wsserver"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// server is the lifecycle shared by the SSH and websocket front ends.
type server interface {
	Start(ctx context.Context) error
	Stop() error
	Addr() string
	Err() <-chan error
}

func newServeCommand(app *App) *cobra.Command {
	var withSSH, withWS bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve kernel sessions over SSH and websocket",
		Long: `Serve kernel sessions to remote clients. Every SSH session and every
websocket connection gets its own interpreter.

Without flags both front ends start. Addresses, authentication and allowed
origins come from the ssh and websocket sections of the configuration.`,
		Example: `  shkernel serve
  shkernel serve --ssh
  ssh -p 2222 localhost 'echo $((6*7))'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !withSSH && !withWS {
				withSSH, withWS = true, true
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, app, withSSH, withWS)
		},
	}
	cmd.Flags().BoolVar(&withSSH, "ssh", false, "serve the SSH front end")
	cmd.Flags().BoolVar(&withWS, "ws", false, "serve the websocket front end")
	return cmd
}

// runServe starts the selected front ends and serves until ctx is done or
// one of them fails. If any front end cannot start, none keeps running.
func runServe(ctx context.Context, app *App, withSSH, withWS bool) error {
	cfg := app.cfg()
	var servers []server

	if withSSH {
		sshCfg, err := sshserver.ConfigFrom(cfg.SSH)
		if err != nil {
			return app.serveFailed("ssh", err)
		}
		servers = append(servers, sshserver.New(sshCfg,
			sshserver.NewKernelFactory(cfg, app.baseDir(), app.logger),
			sshserver.WithLogger(app.logger.WithPrefix("ssh")),
			sshserver.WithSessionOptions(
				repl.WithPrompts(cfg.UI.Prompt, cfg.UI.ContinuationPrompt),
				repl.WithVerbose(app.verbose),
			),
		))
	}
	if withWS {
		servers = append(servers, wsserver.New(wsserver.ConfigFrom(cfg.WebSocket),
			wsserver.NewKernelFactory(cfg, app.baseDir(), app.logger),
			wsserver.WithLogger(app.logger.WithPrefix("websocket")),
			wsserver.WithVersion(Version),
		))
	}

	var started []server
	stopAll := func() {
		for _, s := range started {
			if err := s.Stop(); err != nil {
				app.logger.Warn("server stop failed", "addr", s.Addr(), "error", err)
			}
		}
	}
	for _, s := range servers {
		if err := s.Start(ctx); err != nil {
			stopAll()
			return app.serveFailed(frontEndName(s), err)
		}
		started = append(started, s)
		fmt.Fprintf(app.Stderr, "%s %s listening on %s\n",
			SuccessStyle.Render("✓"), frontEndName(s), KeyStyle.Render(listenAddress(s)))
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range started {
		g.Go(func() error { return serveUntilDone(ctx, s) })
	}
	if err := g.Wait(); err != nil {
		return app.serveFailed("server", err)
	}
	return nil
}

// serveUntilDone stops s when ctx is done and reports a failure of its serve
// loop.
func serveUntilDone(ctx context.Context, s server) error {
	select {
	case <-ctx.Done():
		return s.Stop()
	case err, ok := <-s.Err():
		stopErr := s.Stop()
		if ok && err != nil {
			return err
		}
		return stopErr
	}
}

func frontEndName(s server) string {
	switch s.(type) {
	case *sshserver.Server:
		return "ssh"
	case *wsserver.Server:
		return "websocket"
	default:
		return "server"
	}
}

func listenAddress(s server) string {
	if ws, ok := s.(*wsserver.Server); ok {
		return ws.URL()
	}
	return s.Addr()
}

func (app *App) serveFailed(name string, err error) error {
	return app.reportError(issue.NewErrorContext().
		WithOperation("start " + name + " server").
		WithSuggestions(
			"Check the ssh and websocket sections with 'shkernel config show'",
			"Choose a free port, or 0 to let the system pick one",
			"Set ssh.token or ssh.authorized_keys_path before listening beyond loopback",
		).
		WithIssue(issue.ServerStartFailedId).
		Wrap(err).
		BuildError())
}
