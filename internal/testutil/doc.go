// SPDX-License-Identifier: MPL-2.0

// Package testutil holds helpers shared by the package tests: cleanup of
// closers and servers, and a fake clock.
package testutil
