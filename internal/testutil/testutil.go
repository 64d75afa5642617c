// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"io"
	"testing"
)

// Stopper is implemented by the servers.
type Stopper interface {
	Stop() error
}

// MustClose fails the test when closing c fails.
func MustClose(t testing.TB, c io.Closer) {
	t.Helper()
	if err := c.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}
}

// MustStop stops s, logging instead of failing: shutdown errors during
// cleanup rarely matter to the test.
func MustStop(t testing.TB, s Stopper) {
	t.Helper()
	if err := s.Stop(); err != nil {
		t.Logf("warning: stop returned error: %v", err)
	}
}

// DeferStop registers MustStop as a test cleanup.
func DeferStop(t testing.TB, s Stopper) {
	t.Helper()
	t.Cleanup(func() { MustStop(t, s) })
}
