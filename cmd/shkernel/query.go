// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"shkernel/internal/app/execute"
	"shkernel/internal/repl"

	"github.com/spf13/cobra"
)

// queryFlags are shared by the commands that ask the kernel about code
// without running it.
type queryFlags struct {
	prelude string
	cursor  int
}

func (f *queryFlags) register(cmd *cobra.Command, withCursor bool) {
	cmd.Flags().StringVar(&f.prelude, "prelude", "", "code evaluated first, e.g. function definitions")
	if withCursor {
		cmd.Flags().IntVar(&f.cursor, "cursor", -1, "byte offset of the cursor (default end of code)")
	}
}

func (f *queryFlags) cursorIn(code string) int {
	if f.cursor < 0 || f.cursor > len(code) {
		return len(code)
	}
	return f.cursor
}

func newCompleteCommand(app *App) *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:   "complete <code>",
		Short: "List completions at the cursor",
		Long: `List completions for the word ending at the cursor, best match first.

Exits with status 1 when there is nothing to complete.`,
		Example: `  shkernel complete 'ech'
  shkernel complete --prelude 'greet() { :; }' 'gr'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueryKernel(cmd.Context(), app, flags.prelude, func(ks *execute.Session) error {
				_, options, _ := repl.CompleteAt(ks.Kernel, args[0], flags.cursorIn(args[0]))
				if len(options) == 0 {
					fmt.Fprintln(app.Stderr, WarningStyle.Render("no completions"))
					return &ExitError{Code: 1}
				}
				for _, o := range options {
					fmt.Fprintln(app.Stdout, o)
				}
				return nil
			})
		},
	}
	flags.register(cmd, true)
	return cmd
}

func newInspectCommand(app *App) *cobra.Command {
	var (
		flags  queryFlags
		detail bool
		html   bool
	)
	cmd := &cobra.Command{
		Use:   "inspect <code>",
		Short: "Show documentation for the word at the cursor",
		Example: `  shkernel inspect 'printf'
  shkernel inspect --detail --cursor 2 'cd /tmp'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueryKernel(cmd.Context(), app, flags.prelude, func(ks *execute.Session) error {
				doc, ok := repl.InspectAt(ks.Kernel, args[0], flags.cursorIn(args[0]), detail)
				if !ok {
					fmt.Fprintln(app.Stderr, WarningStyle.Render("no documentation found"))
					return &ExitError{Code: 1}
				}
				text := doc.PlainText
				if html {
					text = doc.RichText
				}
				fmt.Fprintln(app.Stdout, strings.TrimRight(text, "\n"))
				return nil
			})
		},
	}
	flags.register(cmd, true)
	cmd.Flags().BoolVar(&detail, "detail", false, "show extended documentation")
	cmd.Flags().BoolVar(&html, "html", false, "print the HTML rendition")
	return cmd
}

func newIsCompleteCommand(app *App) *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:   "is-complete [code]",
		Short: "Report whether code is ready to evaluate",
		Long: `Print "complete", "incomplete" or "unknown" for the code given as an
argument or on standard input.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var code string
			if len(args) == 1 {
				code = args[0]
			} else {
				src, err := readSource(app.Stdin, nil)
				if err != nil {
					return app.reportError(err)
				}
				code = src
			}
			return withQueryKernel(cmd.Context(), app, flags.prelude, func(ks *execute.Session) error {
				fmt.Fprintln(app.Stdout, ks.Kernel.IsComplete(code))
				return nil
			})
		},
	}
	flags.register(cmd, false)
	return cmd
}

// withQueryKernel runs fn against a fresh kernel after evaluating prelude.
// Output of the prelude goes to stderr so stdout carries only the answer.
func withQueryKernel(ctx context.Context, app *App, prelude string, fn func(*execute.Session) error) error {
	ks, err := app.buildKernel(strings.NewReader(""), app.Stderr)
	if err != nil {
		return app.reportError(err)
	}
	defer app.shutdown(ks)

	if strings.TrimSpace(prelude) != "" {
		if _, _, err := ks.Kernel.Evaluate(ctx, prelude); err != nil {
			return app.reportError(err)
		}
	}
	return fn(ks)
}
