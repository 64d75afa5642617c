// SPDX-License-Identifier: MPL-2.0

// Package execute turns the loaded configuration into a running kernel. It
// keeps environment projection and engine construction out of the front ends,
// which each need their own independent sessions.
package execute
