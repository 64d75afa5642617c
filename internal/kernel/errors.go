// SPDX-License-Identifier: MPL-2.0

package kernel

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompleteSource is the sentinel error wrapped by IncompleteSourceError.
	ErrIncompleteSource = errors.New("incomplete source code")
	// ErrCompile is the sentinel error wrapped by CompileError.
	ErrCompile = errors.New("cannot compile")
	// ErrRuntimeException is the sentinel error wrapped by RuntimeExceptionError.
	ErrRuntimeException = errors.New("runtime exception")
	// ErrUnresolvedReference is the sentinel error wrapped by UnresolvedReferenceError.
	ErrUnresolvedReference = errors.New("unresolved reference")
	// ErrKernelShutdown is returned by Evaluate after Shutdown.
	ErrKernelShutdown = errors.New("kernel is shut down")
)

type (
	// IncompleteSourceError is returned when a submission ends in the middle of
	// a unit. Remainder holds the unconsumed text verbatim.
	IncompleteSourceError struct {
		Remainder string
	}

	// CompileError is returned when a unit could not be defined and the engine
	// raised no exception for it.
	CompileError struct {
		Source string
	}

	// RuntimeExceptionError is returned when user code failed while executing.
	RuntimeExceptionError struct {
		TypeName string
		Message  string
	}

	// UnresolvedReferenceError is returned when executed code reached a symbol
	// that is still undeclared. Origin is the snippet that holds the reference.
	UnresolvedReferenceError struct {
		Origin Snippet
	}
)

// Error implements the error interface.
func (e *IncompleteSourceError) Error() string {
	return fmt.Sprintf("incomplete source code: '%s'", e.Remainder)
}

// Unwrap returns ErrIncompleteSource so callers can use errors.Is for programmatic detection.
func (e *IncompleteSourceError) Unwrap() error { return ErrIncompleteSource }

// Error implements the error interface.
func (e *CompileError) Error() string {
	return fmt.Sprintf("cannot compile '%s'", e.Source)
}

// Unwrap returns ErrCompile so callers can use errors.Is for programmatic detection.
func (e *CompileError) Unwrap() error { return ErrCompile }

// Error implements the error interface.
func (e *RuntimeExceptionError) Error() string {
	if e.Message == "" || e.Message == e.TypeName {
		return e.TypeName
	}
	return fmt.Sprintf("%s: %s", e.TypeName, e.Message)
}

// Unwrap returns ErrRuntimeException so callers can use errors.Is for programmatic detection.
func (e *RuntimeExceptionError) Unwrap() error { return ErrRuntimeException }

// Error implements the error interface.
func (e *UnresolvedReferenceError) Error() string {
	if e.Origin.Source == "" {
		return "unresolved reference"
	}
	return fmt.Sprintf("unresolved reference in '%s'", e.Origin.Source)
}

// Unwrap returns ErrUnresolvedReference so callers can use errors.Is for programmatic detection.
func (e *UnresolvedReferenceError) Unwrap() error { return ErrUnresolvedReference }
