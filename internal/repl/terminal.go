// SPDX-License-Identifier: MPL-2.0

package repl

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"shkernel/internal/kernel"

	"github.com/peterh/liner"
)

// Terminal runs a Session on the controlling terminal with line editing,
// persistent history and tab completion.
type Terminal struct {
	session     *Session
	historyPath string
}

// NewTerminal wraps s. An empty historyPath disables persistent history.
func NewTerminal(s *Session, historyPath string) *Terminal {
	return &Terminal{session: s, historyPath: historyPath}
}

// Run starts the loop. Ctrl-C at the prompt discards the buffered lines;
// during an evaluation it cancels the evaluation. Ctrl-D ends the session.
func (t *Terminal) Run(ctx context.Context) error {
	ln := liner.NewLiner()
	defer ln.Close()

	ln.SetCtrlCAborts(true)
	ln.SetTabCompletionStyle(liner.TabPrints)
	ln.SetWordCompleter(t.completeWord)

	t.readHistory(ln)
	defer t.writeHistory(ln)

	t.session.evalContext = func(parent context.Context) (context.Context, context.CancelFunc) {
		return signal.NotifyContext(parent, os.Interrupt)
	}

	return t.session.loop(ctx, func(prompt string) (string, error) {
		line, err := ln.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", errAborted
		}
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(line) != "" {
			ln.AppendHistory(line)
		}
		return line, nil
	})
}

// completeWord adapts Kernel.Complete to liner. pos counts runes while the
// kernel works on byte offsets.
func (t *Terminal) completeWord(line string, pos int) (head string, completions []string, tail string) {
	runes := []rune(line)
	pos = min(max(pos, 0), len(runes))
	return CompleteAt(t.session.kernel, line, len(string(runes[:pos])))
}

// CompleteAt completes the word ending at byte offset cursor and splits line
// around the range the options replace. Without completions head and tail
// are the text before and after the cursor.
func CompleteAt(k Kernel, line string, cursor int) (head string, options []string, tail string) {
	cursor = min(max(cursor, 0), len(line))
	if cursor == 0 {
		return "", nil, line
	}

	opts, ok := k.Complete(line, cursor-1)
	if !ok {
		return line[:cursor], nil, line[cursor:]
	}
	start := min(max(opts.ReplaceStart, 0), cursor)
	end := min(max(opts.ReplaceEnd, cursor), len(line))
	return line[:start], opts.Options, line[end:]
}

// InspectAt documents the word at byte offset cursor, which sits between
// characters like the cursor of CompleteAt. A cursor at 0 documents the word
// that starts the line.
func InspectAt(k Kernel, code string, cursor int, detail bool) (kernel.Documentation, bool) {
	cursor = min(max(cursor, 0), len(code))
	return k.Inspect(code, max(cursor-1, 0), detail)
}

func (t *Terminal) readHistory(ln *liner.State) {
	if t.historyPath == "" {
		return
	}
	f, err := os.Open(t.historyPath)
	if err != nil {
		return
	}
	defer f.Close()
	if _, err := ln.ReadHistory(f); err != nil {
		t.session.logger.Debug("failed to read history", "path", t.historyPath, "error", err)
	}
}

func (t *Terminal) writeHistory(ln *liner.State) {
	if t.historyPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(t.historyPath), 0o755); err != nil {
		t.session.logger.Debug("failed to create history directory", "error", err)
		return
	}
	f, err := os.Create(t.historyPath)
	if err != nil {
		t.session.logger.Debug("failed to write history", "path", t.historyPath, "error", err)
		return
	}
	defer f.Close()
	if _, err := ln.WriteHistory(f); err != nil {
		t.session.logger.Debug("failed to write history", "path", t.historyPath, "error", err)
	}
}
