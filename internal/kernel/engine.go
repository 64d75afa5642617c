// SPDX-License-Identifier: MPL-2.0

package kernel

import (
	"context"
	"errors"
	"fmt"
)

const (
	// Complete means the consumed source is a complete unit followed by more text
	// or an explicit terminator.
	Complete Completeness = "complete"
	// CompleteWithSemi means the consumed source is complete but ran to the end
	// of the text without an explicit terminator.
	CompleteWithSemi Completeness = "complete-with-semi"
	// DefinitelyIncomplete means more input is required before anything can be
	// evaluated.
	DefinitelyIncomplete Completeness = "definitely-incomplete"
	// ConsideredIncomplete means the text may be complete but the engine prefers
	// to wait for more input.
	ConsideredIncomplete Completeness = "considered-incomplete"
	// Empty means nothing but whitespace or comments remains.
	Empty Completeness = "empty"
	// Unknown means the engine could not classify the text.
	Unknown Completeness = "unknown"
)

const (
	// Expression snippets produce a displayable value.
	Expression SnippetKind = "expression"
	// Statement snippets run for their side effects.
	Statement SnippetKind = "statement"
	// Declaration snippets introduce or replace named state.
	Declaration SnippetKind = "declaration"
	// OtherKind covers anything the engine does not classify.
	OtherKind SnippetKind = "other"
)

const (
	// Valid snippets are defined and usable.
	Valid Status = "valid"
	// RecoverableDefined snippets are defined but reference something missing.
	RecoverableDefined Status = "recoverable-defined"
	// RecoverableNotDefined snippets could not be defined until a missing
	// reference is declared.
	RecoverableNotDefined Status = "recoverable-not-defined"
	// Rejected snippets failed to compile.
	Rejected Status = "rejected"
	// Overwritten snippets were replaced by a later declaration.
	Overwritten Status = "overwritten"
	// Dropped snippets were removed from the engine state.
	Dropped Status = "dropped"
)

const (
	// OriginFresh marks the outcome that corresponds to the unit just submitted.
	OriginFresh Origin = "fresh"
	// OriginCascade marks a re-evaluation of an earlier snippet triggered by the
	// unit just submitted.
	OriginCascade Origin = "cascade"
)

const (
	// ExceptionRuntime is raised by user code while it executes.
	ExceptionRuntime ExceptionKind = "runtime"
	// ExceptionUnresolved is raised when executing code that references a
	// symbol which has not been declared.
	ExceptionUnresolved ExceptionKind = "unresolved"
)

var (
	// ErrEngineClosed is returned by engines that are used after Close.
	ErrEngineClosed = errors.New("engine closed")
	// ErrEngineExited is wrapped by errors engines return when user code ended
	// the session, such as a shell running exit.
	ErrEngineExited = errors.New("engine exited")
)

type (
	// Completeness classifies how much of a source text forms a complete unit.
	Completeness string

	// SnippetKind classifies an evaluated snippet.
	SnippetKind string

	// Status is the definition state of a snippet after evaluation.
	Status string

	// Origin tells fresh outcomes apart from cascades.
	Origin string

	// ExceptionKind tags the variant held by an EngineException.
	ExceptionKind string

	// CompletionInfo is the answer to a single completeness query.
	CompletionInfo struct {
		Completeness Completeness
		// Consumed is the exact text of the next evaluable unit.
		Consumed string
		// Remainder is everything after Consumed.
		Remainder string
	}

	// Snippet identifies one unit the engine holds in its state.
	Snippet struct {
		ID     string
		Kind   SnippetKind
		Source string
	}

	// EngineException is a tagged union of the failures an engine can raise
	// while executing a snippet.
	EngineException struct {
		Kind ExceptionKind
		// TypeName identifies the raised failure for ExceptionRuntime.
		TypeName string
		Message  string
		// Origin is the snippet holding the unresolved reference for
		// ExceptionUnresolved.
		Origin *Snippet
	}

	// SnippetOutcome is one result reported by the engine for an evaluation.
	SnippetOutcome struct {
		Origin  Origin
		Snippet Snippet
		// Cause is the snippet whose evaluation triggered a cascade.
		Cause     *Snippet
		Status    Status
		Value     string
		Exception *EngineException
	}

	// Suggestion is a completion candidate produced by the engine.
	Suggestion struct {
		Text        string
		IsTypeMatch bool
	}

	// DocumentationEntry is a documentation hit produced by the engine.
	DocumentationEntry struct {
		Signature string
		// Doc is empty when the engine has no documentation for the signature.
		Doc string
	}

	// Engine is an incremental evaluator that keeps declared state across calls.
	// Cursor arguments are exclusive end offsets into source.
	Engine interface {
		AnalyzeCompletion(source string) CompletionInfo
		Evaluate(ctx context.Context, source string) ([]SnippetOutcome, error)
		Diagnostics(snippet Snippet) []string
		Documentation(source string, cursor int, detail bool) []DocumentationEntry
		CompletionSuggestions(source string, cursor int) ([]Suggestion, int)
		Close() error
	}

	// InvalidCompletenessError is returned for unknown Completeness values.
	InvalidCompletenessError struct {
		Value Completeness
	}
)

// ErrInvalidCompleteness is the sentinel error wrapped by InvalidCompletenessError.
var ErrInvalidCompleteness = errors.New("invalid completeness")

// Error implements the error interface.
func (e *InvalidCompletenessError) Error() string {
	return fmt.Sprintf("invalid completeness %q", e.Value)
}

// Unwrap returns ErrInvalidCompleteness so callers can use errors.Is for programmatic detection.
func (e *InvalidCompletenessError) Unwrap() error { return ErrInvalidCompleteness }

// IsComplete reports whether the consumed source can be evaluated.
func (c Completeness) IsComplete() bool {
	return c == Complete || c == CompleteWithSemi
}

// IsValid returns whether the Completeness is one of the defined values,
// and a list of validation errors if it is not.
func (c Completeness) IsValid() (bool, []error) {
	switch c {
	case Complete, CompleteWithSemi, DefinitelyIncomplete, ConsideredIncomplete, Empty, Unknown:
		return true, nil
	default:
		return false, []error{&InvalidCompletenessError{Value: c}}
	}
}

// String returns the string representation of the Completeness.
func (c Completeness) String() string { return string(c) }

// IsDefined reports whether a snippet with this status is usable.
func (s Status) IsDefined() bool {
	return s == Valid || s == RecoverableDefined
}

// String returns the string representation of the Status.
func (s Status) String() string { return string(s) }

// Failed reports whether the outcome means the evaluation did not reach a
// usable state. Fresh outcomes fail whenever the snippet is not defined.
// Cascades only fail when a dependent could not be redefined; overwritten and
// dropped snippets are expected side effects of a redefinition.
func (o SnippetOutcome) Failed() bool {
	if o.Origin == OriginCascade {
		return o.Status == Rejected || o.Status == RecoverableNotDefined
	}
	return !o.Status.IsDefined()
}

// IsFresh reports whether the outcome belongs to the unit just submitted.
func (o SnippetOutcome) IsFresh() bool { return o.Origin == OriginFresh }
