// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"shkernel/internal/issue"

	"github.com/spf13/cobra"
)

func newEvalCommand(app *App) *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "eval [file | -]",
		Short: "Evaluate shell code and exit",
		Long: `Evaluate shell code as a single submission and print its value.

The code comes from --code, a file, or standard input ('-' or no argument).
The process exits with the status passed to the exit builtin, 1 when the
evaluation fails, and 0 otherwise.`,
		Example: `  shkernel eval -c 'greet() { echo "hi $1"; }; greet there'
  shkernel eval script.sh
  echo 'echo $((6*7))' | shkernel eval`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd.Context(), app, code, cmd.Flags().Changed("code"), args)
		},
	}
	cmd.Flags().StringVarP(&code, "code", "c", "", "code to evaluate")
	return cmd
}

func runEval(ctx context.Context, app *App, code string, haveCode bool, args []string) error {
	if haveCode && len(args) > 0 {
		return app.reportError(issue.NewErrorContext().
			WithOperation("parse arguments").
			WithSuggestion("Pass either --code or a file, not both").
			BuildError())
	}

	stdin := app.Stdin
	source := code
	if !haveCode {
		src, err := readSource(app.Stdin, args)
		if err != nil {
			return app.reportError(err)
		}
		source = src
		if len(args) == 0 || args[0] == "-" {
			// The source consumed standard input.
			stdin = strings.NewReader("")
		}
	}

	ks, err := app.buildKernel(stdin, app.Stdout)
	if err != nil {
		return app.reportError(err)
	}
	defer app.shutdown(ks)

	value, ok, err := ks.Kernel.Evaluate(ctx, source)
	if ok {
		fmt.Fprintln(app.Stdout, value)
	}
	if err != nil {
		if exit := sessionExit(err); exit == nil || isExitError(exit) {
			return exit
		}
		return app.reportError(err)
	}
	return nil
}

// readSource reads the script named by args, or standard input.
func readSource(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", issue.WrapWithOperation(err, "read standard input")
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", issue.NewErrorContext().
			WithOperation("read script").
			WithResource(args[0]).
			WithSuggestion("Check that the file exists and is readable").
			WithSuggestion("Use '-' to read the script from standard input").
			Wrap(err).
			BuildError()
	}
	return string(data), nil
}

func isExitError(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr)
}
