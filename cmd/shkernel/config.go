// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"shkernel/internal/config"
	"shkernel/internal/issue"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `shkernel config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage shkernel configuration",
		Long: `Manage shkernel configuration.

Configuration is stored in:
  - Linux: ~/.config/shkernel/config.cue
  - macOS: ~/Library/Application Support/shkernel/config.cue
  - Windows: %APPDATA%\shkernel\config.cue

SHKERNEL_* environment variables override file values, e.g.
SHKERNEL_ENGINE_TIMEOUT=30s.`,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showConfig(app, format)
		},
	}
	showCmd.Flags().StringVar(&format, "format", "cue", "output format (cue, toml)")

	cfgCmd.AddCommand(
		showCmd,
		&cobra.Command{
			Use:         "init",
			Short:       "Create the default configuration file",
			Args:        cobra.NoArgs,
			Annotations: map[string]string{skipConfigAnnotation: "true"},
			RunE: func(cmd *cobra.Command, _ []string) error {
				return initConfig(app)
			},
		},
		&cobra.Command{
			Use:         "validate [file]",
			Short:       "Check a configuration file against the schema",
			Args:        cobra.MaximumNArgs(1),
			Annotations: map[string]string{skipConfigAnnotation: "true"},
			RunE: func(cmd *cobra.Command, args []string) error {
				return validateConfig(app, args)
			},
		},
		&cobra.Command{
			Use:         "path",
			Short:       "Show the configuration paths",
			Args:        cobra.NoArgs,
			Annotations: map[string]string{skipConfigAnnotation: "true"},
			RunE: func(cmd *cobra.Command, _ []string) error {
				return showConfigPath(app)
			},
		},
	)
	return cfgCmd
}

func showConfig(app *App, format string) error {
	source := SubtitleStyle.Render("(using defaults)")
	if app.loaded != nil && app.loaded.Path != "" {
		source = app.loaded.Path
	}
	fmt.Fprintf(app.Stderr, "%s: %s\n\n", KeyStyle.Render("Config file"), source)

	switch format {
	case "cue":
		fmt.Fprint(app.Stdout, config.GenerateCUE(app.cfg()))
	case "toml":
		out, err := config.GenerateTOML(app.cfg())
		if err != nil {
			return app.reportError(issue.WrapWithOperation(err, "encode configuration"))
		}
		fmt.Fprint(app.Stdout, out)
	default:
		return app.reportError(issue.NewErrorContext().
			WithOperation("show configuration").
			WithResource(format).
			WithSuggestion("Use --format cue or --format toml").
			BuildError())
	}
	return nil
}

func initConfig(app *App) error {
	path, created, err := config.CreateDefaultConfig(app.ConfigDir)
	if err != nil {
		return app.reportError(issue.NewErrorContext().
			WithOperation("create configuration").
			WithSuggestion("Check that the config directory is writable").
			Wrap(err).
			BuildError())
	}
	if !created {
		fmt.Fprintf(app.Stdout, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), path)
		return nil
	}
	fmt.Fprintf(app.Stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func validateConfig(app *App, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		dir, err := app.configDir()
		if err != nil {
			return app.reportError(err)
		}
		path = filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt)
	}

	if _, err := config.ValidateFile(path); err != nil {
		fmt.Fprintln(app.Stderr, formatErrorForDisplay(err, app.verbose))
		app.renderIssue(issue.Get(issue.ConfigLoadFailedId))
		return &ExitError{Code: 1}
	}
	fmt.Fprintf(app.Stdout, "%s %s is valid\n", SuccessStyle.Render("✓"), path)
	return nil
}

func showConfigPath(app *App) error {
	dir, err := app.configDir()
	if err != nil {
		return app.reportError(err)
	}
	fmt.Fprintf(app.Stdout, "Config directory: %s\n", dir)
	fmt.Fprintf(app.Stdout, "Config file: %s\n", filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt))
	if history, err := app.cfg().UI.HistoryPath(); err == nil {
		fmt.Fprintf(app.Stdout, "History file: %s\n", history)
	}
	return nil
}

func (app *App) configDir() (string, error) {
	if app.ConfigDir != "" {
		return app.ConfigDir, nil
	}
	return config.ConfigDir()
}
