// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"sync"
	"time"
)

// FakeClock only moves when told to. It satisfies the Clock interface of
// the websocket server so reply dates can be asserted exactly.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock starts at at, or at 2020-01-01 UTC when at is zero.
func NewFakeClock(at time.Time) *FakeClock {
	if at.IsZero() {
		at = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return &FakeClock{now: at}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
