// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"time"

	"github.com/charmbracelet/log"
)

const (
	DefaultStartupTimeout  = 10 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// Option configures a Base.
type Option func(*Base)

// WithErrorChannel sets the buffer size of the asynchronous error channel.
func WithErrorChannel(size int) Option {
	return func(b *Base) {
		b.errCh = make(chan error, size)
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(b *Base) {
		b.logger = logger
	}
}

// WithStartupTimeout bounds how long Start waits for the listener.
func WithStartupTimeout(d time.Duration) Option {
	return func(b *Base) {
		if d > 0 {
			b.startupTimeout = d
		}
	}
}

// WithShutdownTimeout bounds how long Stop waits for open connections.
func WithShutdownTimeout(d time.Duration) Option {
	return func(b *Base) {
		if d > 0 {
			b.shutdownTimeout = d
		}
	}
}
