// SPDX-License-Identifier: MPL-2.0

package kernel

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// driver folds the outcomes of successive units into one reported result.
type driver struct {
	engine    Engine
	stderr    io.Writer
	logger    *log.Logger
	lastValue string
}

// evaluateUnit evaluates one complete unit. The first failing outcome ends
// the fold and becomes the result of the whole submission.
func (d *driver) evaluateUnit(ctx context.Context, unit string) error {
	outcomes, err := d.engine.Evaluate(ctx, unit)
	if err != nil {
		return err
	}

	for _, outcome := range outcomes {
		d.logger.Debug("outcome", "origin", outcome.Origin, "kind", outcome.Snippet.Kind, "status", outcome.Status)

		if ex := outcome.Exception; ex != nil {
			return d.raise(outcome, ex)
		}

		if outcome.Failed() {
			WriteDiagnostics(d.stderr, d.engine, outcome.Snippet)
			return &CompileError{Source: strings.TrimSpace(outcome.Snippet.Source)}
		}

		if !outcome.IsFresh() {
			continue
		}
		if outcome.Snippet.Kind == Expression {
			d.lastValue = outcome.Value
		} else {
			d.lastValue = ""
		}
	}
	return nil
}

func (d *driver) raise(outcome SnippetOutcome, ex *EngineException) error {
	switch ex.Kind {
	case ExceptionUnresolved:
		origin := outcome.Snippet
		if ex.Origin != nil {
			origin = *ex.Origin
		}
		WriteDiagnostics(d.stderr, d.engine, origin)
		return &UnresolvedReferenceError{Origin: origin}
	default:
		fmt.Fprintln(d.stderr, ex.TypeName)
		WriteDiagnostics(d.stderr, d.engine, outcome.Snippet)
		return &RuntimeExceptionError{TypeName: ex.TypeName, Message: ex.Message}
	}
}

// evaluate runs every complete unit of submission and returns the value of
// the most recent fresh outcome. ok is false when there is nothing to display.
func (d *driver) evaluate(ctx context.Context, submission string) (value string, ok bool, err error) {
	units := newChunker(d.engine, submission)
	for unit, more := units.Next(); more; unit, more = units.Next() {
		d.logger.Debug("unit", "source", unit)
		if err := d.evaluateUnit(ctx, unit); err != nil {
			return "", false, err
		}
	}

	if info := units.Terminal(); info.Completeness != Empty {
		return "", false, &IncompleteSourceError{Remainder: info.Remainder}
	}
	if d.lastValue == "" {
		return "", false, nil
	}
	return d.lastValue, true, nil
}
