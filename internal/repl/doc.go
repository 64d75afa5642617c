// SPDX-License-Identifier: MPL-2.0

// Package repl provides interactive front ends for a kernel: Session reads
// from any io.Reader and serves piped input and SSH channels, Terminal adds
// line editing on a local terminal.
package repl
