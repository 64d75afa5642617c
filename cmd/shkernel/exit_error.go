// SPDX-License-Identifier: MPL-2.0

package cmd

import "shkernel/internal/runtime"

// ExitError carries the process status out of a RunE handler so Execute
// decides when to exit. Err is nil when the failure was already printed.
type ExitError struct {
	Code runtime.ExitCode
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code.TypeName()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
