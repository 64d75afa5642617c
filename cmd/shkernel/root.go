// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the shkernel CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"shkernel/internal/config"
	"shkernel/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// skipConfigAnnotation marks commands that run without loading the configuration.
const skipConfigAnnotation = "shkernel/skip-config"

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

type (
	// App wires the CLI to its configuration and streams. Every command
	// handler receives the App instead of reaching for globals.
	App struct {
		Config config.Provider
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer

		// ConfigDir overrides the configuration directory lookup.
		ConfigDir string

		configPath string
		verbose    bool
		loaded     *config.Loaded
		logger     *log.Logger
	}
)

// NewApp creates an App on the process streams.
func NewApp() *App {
	return &App{
		Config: config.NewProvider(),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// NewRootCommand builds the command tree for app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "shkernel",
		Short: "An interactive shell kernel",
		Long: TitleStyle.Render("shkernel") + SubtitleStyle.Render(" - an interactive shell kernel") + `

shkernel evaluates shell code one submission at a time against a persistent
interpreter session. Functions may refer to commands that are defined later;
calling them before then reports what is still missing.

` + SubtitleStyle.Render("Examples:") + `
  shkernel                          Start an interactive session
  shkernel eval -c 'echo $((6*7))'  Evaluate code and exit
  shkernel eval script.sh           Evaluate a file
  shkernel serve --ssh              Serve sessions over SSH
  shkernel config show              Show the effective configuration`,
		Args: cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.prepare(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd, app)
		},
	}

	root.SilenceErrors = true
	root.SilenceUsage = true
	root.SetIn(app.Stdin)
	root.SetOut(app.Stdout)
	root.SetErr(app.Stderr)

	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is <config dir>/shkernel/config.cue)")

	root.AddCommand(
		newEvalCommand(app),
		newCompleteCommand(app),
		newInspectCommand(app),
		newIsCompleteCommand(app),
		newServeCommand(app),
		newConfigCommand(app),
	)
	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process with the resulting status.
// Interrupts are left to the commands: the terminal cancels only the running
// evaluation and serve shuts down gracefully.
func Execute() {
	app := NewApp()
	err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithErrorHandler(errorHandler),
	)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// errorHandler prints errors with fang's styling unless the command already
// reported them.
func errorHandler(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}

// prepare loads the configuration and sets up logging before any command
// runs.
func (app *App) prepare(cmd *cobra.Command) error {
	app.logger = log.NewWithOptions(app.Stderr, log.Options{Prefix: "shkernel"})
	if cmd.Annotations[skipConfigAnnotation] == "true" {
		app.applyVerbose(false)
		return nil
	}

	loaded, err := app.Config.Load(cmd.Context(), config.LoadOptions{
		ConfigFilePath: app.configPath,
		ConfigDirPath:  app.ConfigDir,
	})
	if err != nil {
		fmt.Fprintln(app.Stderr, formatErrorForDisplay(err, app.verbose))
		if app.verbose {
			app.renderIssue(issue.Get(issue.ConfigLoadFailedId))
		}
		return &ExitError{Code: 1}
	}
	app.loaded = loaded
	app.applyVerbose(loaded.Config.UI.Verbose)
	return nil
}

func (app *App) applyVerbose(fromConfig bool) {
	app.verbose = app.verbose || fromConfig
	if app.verbose {
		app.logger.SetLevel(log.DebugLevel)
	}
}

// cfg returns the loaded configuration. Commands annotated to skip loading
// get the defaults.
func (app *App) cfg() *config.Config {
	if app.loaded == nil {
		return config.DefaultConfig()
	}
	return app.loaded.Config
}

// renderIssue prints the catalog entry with the configured color scheme.
func (app *App) renderIssue(i *issue.Issue) {
	if i == nil {
		return
	}
	out, err := i.Render(string(app.cfg().UI.ColorScheme))
	if err != nil {
		app.logger.Debug("issue rendering failed", "error", err)
		out = i.Markdown()
	}
	fmt.Fprint(app.Stderr, out)
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// use their own formatting, with the full chain in verbose mode.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ErrorStyle.Render("Error: ") + ae.Format(verbose)
	}
	return ErrorStyle.Render("Error: ") + err.Error()
}
