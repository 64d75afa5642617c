// SPDX-License-Identifier: MPL-2.0

// Package kernel turns an incremental evaluation engine into the operations an
// interactive front end needs: evaluate a whole submission, complete at a
// cursor, and inspect the symbol under a cursor.
//
// A submission is split into complete units by asking the engine how much of
// the remaining text forms a complete unit. Each unit is evaluated in order and
// the resulting outcomes are folded into a single reported result. Engine state
// mutated by units that succeeded before a failure is never rolled back; only
// the reported result of the call is the failure.
//
// The package performs no locking. One Kernel owns one Engine and callers must
// serialize calls into it.
package kernel
