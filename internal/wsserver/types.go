// SPDX-License-Identifier: MPL-2.0

package wsserver

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"shkernel/internal/config"
)

// ErrInvalidWebSocketConfig is the sentinel error wrapped by InvalidWebSocketConfigError.
var ErrInvalidWebSocketConfig = errors.New("invalid websocket server config")

type (
	// Config holds the immutable configuration of a Server.
	Config struct {
		Host string
		// Port is the port to listen on, 0 picks a free one.
		Port int
		// Path is where the upgrade handler is mounted.
		Path string
		// AllowedOrigins are accepted Origin header prefixes. Empty accepts
		// requests without an Origin and same-host origins only.
		AllowedOrigins []string
	}

	// InvalidWebSocketConfigError is returned when a Config has invalid fields.
	InvalidWebSocketConfigError struct {
		FieldErrors []error
	}
)

// Error implements the error interface.
func (e *InvalidWebSocketConfigError) Error() string {
	return fmt.Sprintf("invalid websocket server config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidWebSocketConfig for errors.Is() compatibility.
func (e *InvalidWebSocketConfigError) Unwrap() error { return ErrInvalidWebSocketConfig }

// ConfigFrom converts the websocket section of the configuration.
func ConfigFrom(c config.WebSocketConfig) Config {
	return Config{
		Host:           c.Host,
		Port:           int(c.Port),
		Path:           c.Path,
		AllowedOrigins: append([]string(nil), c.AllowedOrigins...),
	}
}

// Addr returns the host:port the server binds to.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsValid returns whether the Config can be served.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if strings.TrimSpace(c.Host) == "" {
		errs = append(errs, errors.New("host must not be empty"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range 0-65535", c.Port))
	}
	if !strings.HasPrefix(c.Path, "/") {
		errs = append(errs, fmt.Errorf("path %q must start with '/'", c.Path))
	}
	for _, origin := range c.AllowedOrigins {
		if u, err := url.Parse(origin); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("allowed origin %q must be a scheme://host URL", origin))
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidWebSocketConfigError{FieldErrors: errs}}
	}
	return true, nil
}
