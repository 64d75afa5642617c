// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"shkernel/internal/config"
)

var (
	// ErrInvalidSSHConfig is the sentinel error wrapped by InvalidSSHConfigError.
	ErrInvalidSSHConfig = errors.New("invalid SSH server config")
	// ErrUnauthenticatedRemote is returned when a server without any
	// authentication would listen on a non-loopback address.
	ErrUnauthenticatedRemote = errors.New("refusing to serve unauthenticated SSH on a non-loopback address")
)

type (
	// Config holds the immutable configuration of a Server.
	Config struct {
		// Host is the address to bind to.
		Host string
		// Port is the port to listen on, 0 picks a free one.
		Port int
		// HostKeyPath is the ed25519 host key, generated when missing.
		HostKeyPath string
		// AuthorizedKeysPath enables public key authentication.
		AuthorizedKeysPath string
		// Token enables password authentication with this password.
		Token string
		// IdleTimeout closes connections without traffic. Zero disables it.
		IdleTimeout time.Duration
	}

	// InvalidSSHConfigError is returned when a Config has invalid fields.
	InvalidSSHConfigError struct {
		FieldErrors []error
	}
)

// Error implements the error interface.
func (e *InvalidSSHConfigError) Error() string {
	return fmt.Sprintf("invalid SSH server config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidSSHConfig for errors.Is() compatibility.
func (e *InvalidSSHConfigError) Unwrap() error { return ErrInvalidSSHConfig }

// ConfigFrom converts the ssh section of the configuration. An empty host
// key path resolves to the default in the configuration directory.
func ConfigFrom(c config.SSHConfig) (Config, error) {
	hostKey, err := c.HostKey()
	if err != nil {
		return Config{}, err
	}
	return Config{
		Host:               c.Host,
		Port:               int(c.Port),
		HostKeyPath:        hostKey,
		AuthorizedKeysPath: c.AuthorizedKeysPath,
		Token:              c.Token,
	}, nil
}

// Addr returns the host:port the server binds to.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Authenticated reports whether clients must present a token or key.
func (c Config) Authenticated() bool {
	return c.Token != "" || c.AuthorizedKeysPath != ""
}

// IsValid returns whether the Config can be served, and the reasons when it
// cannot.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if strings.TrimSpace(c.Host) == "" {
		errs = append(errs, errors.New("host must not be empty"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range 0-65535", c.Port))
	}
	if strings.TrimSpace(c.HostKeyPath) == "" {
		errs = append(errs, errors.New("host key path must not be empty"))
	}
	if c.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("idle timeout %s must not be negative", c.IdleTimeout))
	}
	if !c.Authenticated() && !isLoopback(c.Host) {
		errs = append(errs, fmt.Errorf("%w %q: set ssh.token or ssh.authorized_keys_path", ErrUnauthenticatedRemote, c.Host))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidSSHConfigError{FieldErrors: errs}}
	}
	return true, nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
