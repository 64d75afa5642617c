// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"shkernel/internal/kernel"
	"shkernel/internal/repl"
	"shkernel/internal/runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/ssh"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// handle runs one SSH session to completion and reports its exit status.
func (s *Server) handle(sess ssh.Session) {
	ctx, cancel := context.WithCancel(sess.Context())
	defer cancel()
	defer context.AfterFunc(s.base.Context(), cancel)()

	pty, winCh, isPty := sess.Pty()
	command := sess.RawCommand()

	var (
		out    io.Writer = sess
		errOut io.Writer = sess.Stderr()
		stdin  io.Reader
		tty    *term.Terminal
	)
	switch {
	case command != "":
		stdin = sess
	case isPty:
		tty = term.NewTerminal(sess, "")
		_ = tty.SetSize(pty.Window.Width, pty.Window.Height)
		go func() {
			for win := range winCh {
				_ = tty.SetSize(win.Width, win.Height)
			}
		}()
		out, errOut = tty, tty
	}

	ks, err := s.newKernel(SessionEnv{
		User:       sess.User(),
		RemoteAddr: sess.RemoteAddr().String(),
		Stdin:      stdin,
		Stdout:     out,
		Stderr:     errOut,
	})
	if err != nil {
		s.logger.Error("failed to create kernel", "user", sess.User(), "error", err)
		fmt.Fprintf(errOut, "error: %v\n", err)
		_ = sess.Exit(1)
		return
	}
	defer func() {
		if err := ks.Kernel.Shutdown(); err != nil {
			s.logger.Debug("kernel shutdown", "error", err)
		}
	}()

	var code int
	switch {
	case command != "":
		code = runCommand(ctx, ks.Kernel, command, out, errOut)
	case tty != nil:
		code = s.exitCode(s.runTerminal(ctx, ks.Kernel, tty, sessionRenderer(sess, tty)))
	default:
		session := repl.NewSession(ks.Kernel, s.replOptions(out, errOut, true, sessionRenderer(sess, out))...)
		code = s.exitCode(session.Run(ctx, sess))
	}
	_ = sess.Exit(code)
}

func (s *Server) replOptions(out, errOut io.Writer, quiet bool, r *lipgloss.Renderer) []repl.Option {
	opts := []repl.Option{
		repl.WithOutput(out, errOut),
		repl.WithQuiet(quiet),
		repl.WithRenderer(r),
		repl.WithLogger(s.logger.WithPrefix("repl")),
	}
	return append(opts, s.sessionOpts...)
}

// runTerminal drives the loop over a virtual terminal on the channel. Ctrl-C
// and Ctrl-D on an empty line end the session.
func (s *Server) runTerminal(ctx context.Context, k *kernel.Kernel, tty *term.Terminal, r *lipgloss.Renderer) error {
	tty.AutoCompleteCallback = func(line string, pos int, key rune) (string, int, bool) {
		if key != '\t' {
			return "", 0, false
		}
		return completeLine(k, line, pos)
	}

	session := repl.NewSession(k, s.replOptions(tty, tty, false, r)...)
	return session.RunFunc(ctx, func(prompt string) (string, error) {
		tty.SetPrompt(prompt)
		line, err := tty.ReadLine()
		if errors.Is(err, term.ErrPasteIndicator) {
			err = nil
		}
		return line, err
	})
}

// completeLine inserts the longest prefix shared by the completions of the
// word at pos.
func completeLine(k repl.Kernel, line string, pos int) (string, int, bool) {
	head, options, tail := repl.CompleteAt(k, line, pos)
	insert := commonPrefix(options)
	if insert == "" || len(head)+len(insert) < pos {
		return "", 0, false
	}
	return head + insert + tail, len(head) + len(insert), true
}

// commonPrefix shortens by whole runes so the result stays valid UTF-8 when
// options differ inside a multibyte character.
func commonPrefix(options []string) string {
	if len(options) == 0 {
		return ""
	}
	prefix := options[0]
	for _, o := range options[1:] {
		for !strings.HasPrefix(o, prefix) {
			_, size := utf8.DecodeLastRuneInString(prefix)
			prefix = prefix[:len(prefix)-size]
		}
	}
	return prefix
}

// runCommand evaluates a command given on the ssh command line once.
func runCommand(ctx context.Context, k *kernel.Kernel, command string, out, errOut io.Writer) int {
	value, ok, err := k.Evaluate(ctx, command)
	if err != nil {
		var exit *runtime.ExitRequestError
		if errors.As(err, &exit) {
			return int(exit.Code)
		}
		fmt.Fprintf(errOut, "error: %v\n", err)
		return 1
	}
	if ok {
		fmt.Fprintln(out, value)
	}
	return 0
}

// exitCode maps the end of a session loop to the status sent to the client.
func (s *Server) exitCode(err error) int {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, kernel.ErrKernelShutdown) {
		return 0
	}
	var exit *runtime.ExitRequestError
	if errors.As(err, &exit) {
		return int(exit.Code)
	}
	s.logger.Debug("session ended with error", "error", err)
	return 1
}

// sessionRenderer picks the color profile from the client's PTY request.
func sessionRenderer(sess ssh.Session, w io.Writer) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	pty, _, ok := sess.Pty()
	if !ok || pty.Term == "" || pty.Term == "dumb" {
		r.SetColorProfile(termenv.Ascii)
		return r
	}
	r.SetColorProfile(termenv.ANSI256)
	return r
}
