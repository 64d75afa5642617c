// SPDX-License-Identifier: MPL-2.0

// Package sshserver serves kernel sessions over SSH using the Wish library.
//
// Every SSH session gets its own kernel and shell engine. Interactive
// clients that request a PTY get a line-edited read-eval-print loop with
// completion on Tab; clients without a PTY are read as piped input, and a
// session started with a command evaluates it once and exits with its
// status.
//
// Clients authenticate with the configured token as password, with a key
// from an authorized_keys file, or both. A server with neither only binds
// to loopback addresses.
package sshserver
