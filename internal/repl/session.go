// SPDX-License-Identifier: MPL-2.0

package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"shkernel/internal/issue"
	"shkernel/internal/kernel"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

const (
	// DefaultPrompt is shown before the first line of a submission.
	DefaultPrompt = "$ "
	// DefaultContinuationPrompt is shown while a submission is incomplete.
	DefaultContinuationPrompt = "> "
)

// errAborted discards the buffered submission without ending the session.
var errAborted = errors.New("input aborted")

type (
	// Kernel is the part of *kernel.Kernel a session drives.
	Kernel interface {
		Evaluate(ctx context.Context, submission string) (value string, ok bool, err error)
		Inspect(code string, cursor int, detail bool) (kernel.Documentation, bool)
		Complete(code string, cursor int) (kernel.ReplacementOptions, bool)
		IsComplete(code string) kernel.IsCompleteStatus
		LanguageInfo() kernel.LanguageInfo
	}

	// Session is a line-oriented read-eval-print loop. Lines are buffered
	// until the kernel considers them complete, then evaluated as one
	// submission.
	Session struct {
		kernel       Kernel
		out          io.Writer
		errOut       io.Writer
		prompt       string
		continuation string
		quiet        bool
		verbose      bool
		styles       styles
		markdown     func(string) (string, error)
		logger       *log.Logger

		// evalContext derives the context of one evaluation.
		evalContext func(context.Context) (context.Context, context.CancelFunc)
	}

	// Option configures a Session.
	Option func(*Session)

	// lineFunc reads one line, showing prompt first when the front end prompts.
	lineFunc func(prompt string) (string, error)
)

// NewSession creates a Session writing to os.Stdout and os.Stderr.
func NewSession(k Kernel, opts ...Option) *Session {
	s := &Session{
		kernel:       k,
		out:          os.Stdout,
		errOut:       os.Stderr,
		prompt:       DefaultPrompt,
		continuation: DefaultContinuationPrompt,
		logger:       log.NewWithOptions(os.Stderr, log.Options{Prefix: "repl"}),
		evalContext:  context.WithCancel,
	}
	renderer := lipgloss.DefaultRenderer()
	for _, opt := range opts {
		opt(s)
	}
	if s.styles.isZero() {
		s.styles = newStyles(renderer)
	}
	return s
}

// WithOutput sets where values and meta command output go (out) and where
// errors go (errOut).
func WithOutput(out, errOut io.Writer) Option {
	return func(s *Session) {
		s.out = out
		s.errOut = errOut
	}
}

// WithPrompts overrides the primary and continuation prompts. Empty values
// keep the defaults.
func WithPrompts(prompt, continuation string) Option {
	return func(s *Session) {
		if prompt != "" {
			s.prompt = prompt
		}
		if continuation != "" {
			s.continuation = continuation
		}
	}
}

// WithQuiet suppresses the banner and prompts, for piped input.
func WithQuiet(quiet bool) Option {
	return func(s *Session) {
		s.quiet = quiet
	}
}

// WithVerbose appends the catalog explanation to every failed evaluation.
func WithVerbose(verbose bool) Option {
	return func(s *Session) {
		s.verbose = verbose
	}
}

// WithMarkdownStyle renders documentation and explanations with glamour using
// the given style name ("auto", "dark", "light") or style file.
func WithMarkdownStyle(style string) Option {
	return func(s *Session) {
		s.markdown = func(md string) (string, error) {
			return glamour.Render(md, style)
		}
	}
}

// WithRenderer builds the session styles for a specific output, such as an
// SSH channel whose color support differs from the local terminal.
func WithRenderer(r *lipgloss.Renderer) Option {
	return func(s *Session) {
		s.styles = newStyles(r)
	}
}

// WithLogger sets the logger used for debug tracing.
func WithLogger(logger *log.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// Run reads submissions from in until EOF, :quit, or the shell exits. A
// shell exit is returned as the error Evaluate produced for it, so callers
// can recover the exit status.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	lines := &lineReader{r: bufio.NewReader(in)}
	return s.loop(ctx, func(prompt string) (string, error) {
		if !s.quiet {
			fmt.Fprint(s.out, prompt)
		}
		return lines.next()
	})
}

// RunFunc runs the loop over a caller supplied line source, such as a
// remote terminal. read returns io.EOF to end the session.
func (s *Session) RunFunc(ctx context.Context, read func(prompt string) (string, error)) error {
	return s.loop(ctx, read)
}

func (s *Session) loop(ctx context.Context, read lineFunc) error {
	if !s.quiet {
		fmt.Fprintln(s.out, s.styles.banner.Render(s.kernel.LanguageInfo().Banner()))
		fmt.Fprintln(s.out, s.styles.muted.Render("Type :help for help."))
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		code, err := s.readSubmission(read)
		switch {
		case errors.Is(err, errAborted):
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}

		done, err := s.Handle(ctx, code)
		if done {
			return err
		}
	}
}

// readSubmission reads lines until the buffer is complete. At EOF a partial
// buffer is still returned so the kernel reports it as incomplete source.
func (s *Session) readSubmission(read lineFunc) (string, error) {
	var buf strings.Builder
	for {
		prompt := s.prompt
		if buf.Len() > 0 {
			prompt = s.continuation
		}

		line, err := read(prompt)
		if err != nil {
			if errors.Is(err, io.EOF) && buf.Len() > 0 {
				return buf.String(), nil
			}
			return "", err
		}

		if buf.Len() == 0 && isMetaCommand(line) {
			return line, nil
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(line)

		if s.kernel.IsComplete(buf.String()) != kernel.IsCompleteIncomplete {
			return buf.String(), nil
		}
	}
}

// Handle evaluates one submission or meta command and prints the result.
// done reports that the session is over; err is then the reason, nil for a
// plain :quit.
func (s *Session) Handle(ctx context.Context, code string) (done bool, err error) {
	if strings.TrimSpace(code) == "" {
		return false, nil
	}
	if isMetaCommand(code) {
		return s.runMeta(code)
	}

	evalCtx, cancel := s.evalContext(ctx)
	defer cancel()

	value, ok, err := s.kernel.Evaluate(evalCtx, code)
	if err != nil {
		if errors.Is(err, kernel.ErrEngineExited) || errors.Is(err, kernel.ErrKernelShutdown) {
			s.logger.Debug("session ended", "reason", err)
			return true, err
		}
		s.printError(err)
		return false, nil
	}
	if ok {
		fmt.Fprintln(s.out, s.styles.value.Render(value))
	}
	return false, nil
}

func (s *Session) printError(err error) {
	fmt.Fprintln(s.errOut, s.styles.error.Render("error:")+" "+err.Error())
	if !s.verbose {
		return
	}
	if i := issue.ForError(err); i != nil {
		fmt.Fprintln(s.errOut, s.renderMarkdown(i.Markdown()))
	}
}

// renderMarkdown falls back to the raw Markdown when no style is configured
// or rendering fails.
func (s *Session) renderMarkdown(md string) string {
	if s.markdown == nil {
		return md
	}
	out, err := s.markdown(md)
	if err != nil {
		s.logger.Debug("markdown rendering failed", "error", err)
		return md
	}
	return strings.TrimRight(out, "\n")
}

// lineReader splits input into lines, returning a final unterminated line
// before io.EOF.
type lineReader struct {
	r   *bufio.Reader
	eof bool
}

func (l *lineReader) next() (string, error) {
	if l.eof {
		return "", io.EOF
	}
	line, err := l.r.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", err
		}
		l.eof = true
		if line == "" {
			return "", io.EOF
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}
