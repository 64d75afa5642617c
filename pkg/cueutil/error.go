// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

// ErrInvalidCUE is the sentinel error wrapped by ValidationError.
var ErrInvalidCUE = errors.New("invalid CUE")

type (
	// ValidationError reports every problem CUE found in one file.
	ValidationError struct {
		// FilePath is the file being validated.
		FilePath string
		Issues   []FieldIssue
	}

	// FieldIssue is one CUE error, located by the JSON path of the offending value.
	FieldIssue struct {
		// Path is e.g. "ssh.port" or "engine.env_files[1]". Empty for file-level errors.
		Path    string
		Message string
	}
)

// Error implements the error interface.
//
// One issue renders as <file>: <path>: <message>; several as a header line
// followed by one indented line each.
func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("%s: %s", e.FilePath, e.Issues[0])
	}
	lines := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		lines = append(lines, issue.String())
	}
	return fmt.Sprintf("%s: validation failed:\n  %s", e.FilePath, strings.Join(lines, "\n  "))
}

// Unwrap returns ErrInvalidCUE for errors.Is() compatibility.
func (e *ValidationError) Unwrap() error { return ErrInvalidCUE }

func (i FieldIssue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// FormatError converts a CUE error into a *ValidationError whose issues carry
// JSON path prefixes, e.g.
//
//	config.cue: websocket.allowed_origins[0]: conflicting values ...
//
// Errors that are not CUE errors are wrapped with the file path.
func FormatError(err error, filePath string) error {
	if err == nil {
		return nil
	}

	cueErrors := cueerrors.Errors(err)
	if len(cueErrors) == 0 {
		return fmt.Errorf("%s: %w", filePath, err)
	}

	verr := &ValidationError{FilePath: filePath}
	for _, e := range cueErrors {
		pathStr := formatPath(cueerrors.Path(e))
		msg := e.Error()

		// CUE sometimes repeats the path at the start of the message.
		if pathStr != "" && strings.HasPrefix(msg, pathStr) {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, pathStr), ":"))
		}
		verr.Issues = append(verr.Issues, FieldIssue{Path: pathStr, Message: msg})
	}
	return verr
}

// formatPath converts a CUE error path to JSON-path notation for user-facing messages.
// CUE reports paths as flat slices such as ["engine", "env_files", "1"], where numeric
// elements are list indices; this renders "engine.env_files[1]".
func formatPath(path []string) string {
	if len(path) == 0 {
		return ""
	}

	var result strings.Builder
	for i, part := range path {
		if i > 0 && isIndex(part) {
			result.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			result.WriteString(".")
		}
		result.WriteString(part)
	}

	return result.String()
}

func isIndex(part string) bool {
	if part == "" {
		return false
	}
	for _, c := range part {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// CheckFileSize verifies that data does not exceed the specified maximum size.
func CheckFileSize(data []byte, maxSize int64, filename string) error {
	if int64(len(data)) > maxSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes",
			filename, len(data), maxSize)
	}
	return nil
}
