// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"shkernel/internal/app/execute"
	"shkernel/internal/issue"
	"shkernel/internal/kernel"
	"shkernel/internal/repl"
	"shkernel/internal/runtime"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// runREPL starts an interactive session. A terminal gets line editing and
// history; piped input is evaluated quietly, one submission at a time.
func runREPL(cmd *cobra.Command, app *App) error {
	ks, err := app.buildKernel(app.Stdin, app.Stdout)
	if err != nil {
		return app.reportError(err)
	}
	defer app.shutdown(ks)

	opts := app.sessionOptions()
	if !isTerminal(app.Stdin) {
		s := repl.NewSession(ks.Kernel, append(opts, repl.WithQuiet(true))...)
		return sessionExit(s.Run(cmd.Context(), app.Stdin))
	}

	history, err := app.cfg().UI.HistoryPath()
	if err != nil {
		app.logger.Debug("history disabled", "error", err)
		history = ""
	}
	t := repl.NewTerminal(repl.NewSession(ks.Kernel, opts...), history)
	return sessionExit(t.Run(cmd.Context()))
}

func (app *App) sessionOptions() []repl.Option {
	ui := app.cfg().UI
	return []repl.Option{
		repl.WithOutput(app.Stdout, app.Stderr),
		repl.WithPrompts(ui.Prompt, ui.ContinuationPrompt),
		repl.WithVerbose(app.verbose),
		repl.WithMarkdownStyle(string(ui.ColorScheme)),
		repl.WithLogger(app.logger.WithPrefix("repl")),
	}
}

// buildKernel creates a kernel from the loaded configuration. Relative
// env_files resolve against the directory of the config file.
func (app *App) buildKernel(stdin io.Reader, stdout io.Writer) (*execute.Session, error) {
	return execute.BuildKernel(execute.BuildKernelOptions{
		Config:  app.cfg(),
		BaseDir: app.baseDir(),
		Stdin:   stdin,
		Stdout:  stdout,
		Stderr:  app.Stderr,
		Logger:  app.logger,
	})
}

func (app *App) baseDir() string {
	if app.loaded == nil || app.loaded.Path == "" {
		return ""
	}
	return filepath.Dir(app.loaded.Path)
}

func (app *App) shutdown(ks *execute.Session) {
	if err := ks.Kernel.Shutdown(); err != nil {
		app.logger.Debug("kernel shutdown", "error", err)
	}
}

// reportError prints err, with its catalog entry in verbose mode, and
// returns the already reported failure.
func (app *App) reportError(err error) error {
	fmt.Fprintln(app.Stderr, formatErrorForDisplay(err, app.verbose))
	if app.verbose {
		i := issue.ForError(err)
		var ae *issue.ActionableError
		if errors.As(err, &ae) {
			i = ae.CatalogIssue()
		}
		app.renderIssue(i)
	}
	return &ExitError{Code: 1}
}

// sessionExit maps the end of a session to the process status. The exit
// builtin's status becomes the process status.
func sessionExit(err error) error {
	var exit *runtime.ExitRequestError
	switch {
	case errors.As(err, &exit):
		if exit.Code == 0 {
			return nil
		}
		return &ExitError{Code: exit.Code}
	case err == nil,
		errors.Is(err, io.EOF),
		errors.Is(err, context.Canceled),
		errors.Is(err, kernel.ErrKernelShutdown):
		return nil
	default:
		return err
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
