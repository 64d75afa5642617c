// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"errors"
	"fmt"
)

const (
	// StateCreated is the state before Start.
	StateCreated State = iota
	// StateStarting means the listener is being set up.
	StateStarting
	// StateRunning means connections are accepted.
	StateRunning
	// StateStopping means Stop is draining connections.
	StateStopping
	// StateStopped is terminal.
	StateStopped
	// StateFailed is terminal. LastError holds the cause.
	StateFailed
)

// ErrInvalidState is the sentinel error wrapped by InvalidStateError.
var ErrInvalidState = errors.New("invalid state")

type (
	// State is the lifecycle state of a server. A server moves forward only:
	// created, starting, running, stopping, then stopped or failed.
	State int32

	// InvalidStateError is returned when a State value is not a lifecycle state.
	InvalidStateError struct {
		Value State
	}
)

var stateNames = [...]string{
	StateCreated:  "created",
	StateStarting: "starting",
	StateRunning:  "running",
	StateStopping: "stopping",
	StateStopped:  "stopped",
	StateFailed:   "failed",
}

func (s State) String() string {
	if ok, _ := s.IsValid(); !ok {
		return "unknown"
	}
	return stateNames[s]
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid server state %d", e.Value)
}

// Unwrap returns ErrInvalidState so callers can use errors.Is for programmatic detection.
func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// IsValid returns whether s is one of the lifecycle states, and a list of
// validation errors if it is not.
func (s State) IsValid() (bool, []error) {
	if s < StateCreated || s > StateFailed {
		return false, []error{&InvalidStateError{Value: s}}
	}
	return true, nil
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}
