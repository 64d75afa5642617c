// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"strconv"

	"shkernel/internal/kernel"
)

// ExitCode is the status of a shell statement. The interpreter keeps it in
// 0-255, like a real shell.
type ExitCode int

// ExitRequestError is returned by Evaluate when user code ran the exit
// builtin. The engine rejects evaluations after it.
type ExitRequestError struct {
	Code ExitCode
}

func (e *ExitRequestError) Error() string {
	return "shell exited with status " + e.Code.String()
}

// Unwrap lets front ends detect the end of a session through
// kernel.ErrEngineExited without importing this package.
func (e *ExitRequestError) Unwrap() error { return kernel.ErrEngineExited }

func (c ExitCode) String() string { return strconv.Itoa(int(c)) }

// TypeName is how a failing status is reported as a runtime exception.
func (c ExitCode) TypeName() string { return "exit status " + c.String() }
