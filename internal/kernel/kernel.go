// SPDX-License-Identifier: MPL-2.0

package kernel

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

const (
	// IsCompleteComplete means the code can be evaluated as is.
	IsCompleteComplete IsCompleteStatus = "complete"
	// IsCompleteIncomplete means the code needs more input.
	IsCompleteIncomplete IsCompleteStatus = "incomplete"
	// IsCompleteUnknown means the engine could not decide.
	IsCompleteUnknown IsCompleteStatus = "unknown"
)

type (
	// IsCompleteStatus is the answer to an is-complete query.
	IsCompleteStatus string

	// Kernel drives one Engine. It owns the engine and closes it on Shutdown.
	Kernel struct {
		engine   Engine
		stderr   io.Writer
		logger   *log.Logger
		language LanguageInfo
		closed   bool
	}

	// Option configures a Kernel.
	Option func(*Kernel)
)

// New creates a Kernel around engine.
// Diagnostics are written to os.Stderr unless WithStderr is given.
func New(engine Engine, opts ...Option) *Kernel {
	k := &Kernel{
		engine: engine,
		stderr: os.Stderr,
		logger: log.NewWithOptions(os.Stderr, log.Options{Prefix: "kernel"}),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// WithStderr sets the error channel used for diagnostics and exception names.
func WithStderr(w io.Writer) Option {
	return func(k *Kernel) {
		k.stderr = w
	}
}

// WithLogger sets the logger used for debug tracing.
func WithLogger(logger *log.Logger) Option {
	return func(k *Kernel) {
		k.logger = logger
	}
}

// WithLanguageInfo replaces the advertised language metadata.
func WithLanguageInfo(info LanguageInfo) Option {
	return func(k *Kernel) {
		k.language = info
	}
}

// Evaluate runs every unit of submission. On success it returns the value of
// the last fresh expression, with ok false when there is nothing to display.
//
// A failure in any unit is the result of the whole call, but state declared by
// the units that ran before it stays in the engine.
func (k *Kernel) Evaluate(ctx context.Context, submission string) (value string, ok bool, err error) {
	if k.closed {
		return "", false, ErrKernelShutdown
	}
	d := &driver{engine: k.engine, stderr: k.stderr, logger: k.logger}
	return d.evaluate(ctx, submission)
}

// Inspect returns the documentation for the symbol at cursor. detail asks the
// engine for extended documentation. ok is false when nothing was found.
func (k *Kernel) Inspect(code string, cursor int, detail bool) (Documentation, bool) {
	if k.closed {
		return Documentation{}, false
	}
	at := ResolveForInspection(code, cursor)
	return FormatDocumentation(k.engine.Documentation(code, engineCursor(code, at), detail))
}

// Complete returns the ranked completions for the identifier at cursor. ok is
// false when the engine has nothing to offer.
func (k *Kernel) Complete(code string, cursor int) (ReplacementOptions, bool) {
	if k.closed {
		return ReplacementOptions{}, false
	}
	at := ResolveForCompletion(code, cursor)
	end := engineCursor(code, at)
	suggestions, replaceStart := k.engine.CompletionSuggestions(code, end)
	options := RankSuggestions(suggestions)
	if options == nil {
		return ReplacementOptions{}, false
	}
	return ReplacementOptions{Options: options, ReplaceStart: replaceStart, ReplaceEnd: end}, true
}

// IsComplete reports whether code could be submitted as is. Text that is only
// whitespace counts as complete.
func (k *Kernel) IsComplete(code string) IsCompleteStatus {
	if k.closed {
		return IsCompleteUnknown
	}
	_, terminal := Chunk(k.engine, code)
	switch terminal.Completeness {
	case Empty:
		return IsCompleteComplete
	case DefinitelyIncomplete, ConsideredIncomplete:
		return IsCompleteIncomplete
	default:
		return IsCompleteUnknown
	}
}

// LanguageInfo returns the metadata of the language the engine evaluates.
func (k *Kernel) LanguageInfo() LanguageInfo { return k.language }

// Shutdown closes the engine. Later calls are no-ops.
func (k *Kernel) Shutdown() error {
	if k.closed {
		return nil
	}
	k.closed = true
	k.logger.Debug("shutting down engine")
	return k.engine.Close()
}

// engineCursor converts a resolved offset to the exclusive end position the
// engine expects.
func engineCursor(code string, at int) int {
	return min(at+1, len(code))
}
