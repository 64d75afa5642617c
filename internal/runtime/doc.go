// SPDX-License-Identifier: MPL-2.0

// Package runtime provides VirtualEngine, a kernel.Engine that evaluates bash
// with the embedded mvdan/sh interpreter.
//
// One engine is one shell session: variables, functions and the working
// directory persist across evaluations. Each top-level statement is a unit.
// Arithmetic commands and test clauses are expressions whose value is
// reported; assignments, declarations and function definitions are
// declarations; everything else is a statement run for its output.
//
// Functions that call commands which do not exist yet are accepted as
// recoverable definitions. Calling one of them before the missing command is
// defined fails with an unresolved reference attributed to the declaring
// input, and defining the missing command later is reported as a cascade.
//
// The initial environment is built by BuildEnv from the host environment,
// dotenv files and explicit variables.
package runtime
