// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// DefaultSSHPort is the port the SSH front end listens on unless configured.
	DefaultSSHPort Port = 2222
	// DefaultWebSocketPort is the port the websocket front end listens on unless configured.
	DefaultWebSocketPort Port = 8888
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidPort is the sentinel error wrapped by InvalidPortError.
	ErrInvalidPort = errors.New("invalid port")
	// ErrInvalidDuration is the sentinel error wrapped by InvalidDurationError.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrInvalidEngineConfig is the sentinel error wrapped by InvalidEngineConfigError.
	ErrInvalidEngineConfig = errors.New("invalid engine config")
	// ErrInvalidUIConfig is the sentinel error wrapped by InvalidUIConfigError.
	ErrInvalidUIConfig = errors.New("invalid UI config")
	// ErrInvalidServerConfig is the sentinel error wrapped by InvalidServerConfigError.
	ErrInvalidServerConfig = errors.New("invalid server config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// Port is a TCP port. Zero asks the system for a free port.
	Port int

	// InvalidPortError is returned when a Port is outside 0-65535.
	InvalidPortError struct {
		Value Port
	}

	// Duration is a Go duration string such as "30s" or "1m30s".
	// "0" and "0s" disable the limit it configures.
	Duration string

	// InvalidDurationError is returned when a Duration does not parse or is negative.
	InvalidDurationError struct {
		Value Duration
	}

	// InvalidEngineConfigError is returned when an EngineConfig has invalid fields.
	InvalidEngineConfigError struct {
		FieldErrors []error
	}

	// InvalidUIConfigError is returned when a UIConfig has invalid fields.
	InvalidUIConfigError struct {
		FieldErrors []error
	}

	// InvalidServerConfigError is returned when an SSH or websocket section has
	// invalid fields. Section names which one.
	InvalidServerConfigError struct {
		Section     string
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It collects field-level validation errors from all sections.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Engine configures the shell sessions every front end creates.
		Engine EngineConfig `json:"engine" mapstructure:"engine" toml:"engine"`
		// UI configures the terminal front end.
		UI UIConfig `json:"ui" mapstructure:"ui" toml:"ui"`
		// SSH configures the SSH front end of 'serve'.
		SSH SSHConfig `json:"ssh" mapstructure:"ssh" toml:"ssh"`
		// WebSocket configures the websocket front end of 'serve'.
		WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket" toml:"websocket"`
	}

	// EngineConfig configures a shell session.
	EngineConfig struct {
		// WorkDir is the initial working directory. Empty means the process cwd.
		WorkDir string `json:"work_dir" mapstructure:"work_dir" toml:"work_dir"`
		// InheritEnv copies the host environment into each session.
		InheritEnv bool `json:"inherit_env" mapstructure:"inherit_env" toml:"inherit_env"`
		// Env sets variables in each session. They win over EnvFiles.
		Env map[string]string `json:"env" mapstructure:"env" toml:"env"`
		// EnvFiles are dotenv files loaded in order. A '?' suffix marks a file optional.
		EnvFiles []string `json:"env_files" mapstructure:"env_files" toml:"env_files"`
		// FailOnNonZeroExit reports a non-zero exit status as a runtime failure.
		FailOnNonZeroExit bool `json:"fail_on_nonzero_exit" mapstructure:"fail_on_nonzero_exit" toml:"fail_on_nonzero_exit"`
		// Timeout bounds each evaluated unit.
		Timeout Duration `json:"timeout" mapstructure:"timeout" toml:"timeout"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme sets the color scheme
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme" toml:"color_scheme"`
		// Verbose enables debug logging
		Verbose bool `json:"verbose" mapstructure:"verbose" toml:"verbose"`
		// HistoryFile stores terminal history. Empty means history in the config dir.
		HistoryFile string `json:"history_file" mapstructure:"history_file" toml:"history_file"`
		Prompt      string `json:"prompt" mapstructure:"prompt" toml:"prompt"`
		// ContinuationPrompt is shown while a submission is incomplete.
		ContinuationPrompt string `json:"continuation_prompt" mapstructure:"continuation_prompt" toml:"continuation_prompt"`
	}

	// SSHConfig configures the SSH server.
	SSHConfig struct {
		Host string `json:"host" mapstructure:"host" toml:"host"`
		Port Port   `json:"port" mapstructure:"port" toml:"port"`
		// HostKeyPath is created on first start when missing. Empty means a key in the config dir.
		HostKeyPath string `json:"host_key_path" mapstructure:"host_key_path" toml:"host_key_path"`
		// AuthorizedKeysPath enables public key authentication.
		AuthorizedKeysPath string `json:"authorized_keys_path" mapstructure:"authorized_keys_path" toml:"authorized_keys_path"`
		// Token enables password authentication with this password.
		Token string `json:"token" mapstructure:"token" toml:"token"`
	}

	// WebSocketConfig configures the websocket server.
	WebSocketConfig struct {
		Host string `json:"host" mapstructure:"host" toml:"host"`
		Port Port   `json:"port" mapstructure:"port" toml:"port"`
		// Path is the HTTP path the upgrade handler is mounted on.
		Path string `json:"path" mapstructure:"path" toml:"path"`
		// AllowedOrigins lists accepted Origin headers. Empty accepts same-host origins only.
		AllowedOrigins []string `json:"allowed_origins" mapstructure:"allowed_origins" toml:"allowed_origins"`
	}
)

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error {
	return ErrInvalidColorScheme
}

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes,
// and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// Error implements the error interface for InvalidPortError.
func (e *InvalidPortError) Error() string {
	return fmt.Sprintf("invalid port %d (must be in range 0-65535)", e.Value)
}

// Unwrap returns ErrInvalidPort for errors.Is() compatibility.
func (e *InvalidPortError) Unwrap() error { return ErrInvalidPort }

// IsValid returns whether the Port is in range.
func (p Port) IsValid() (bool, []error) {
	if p < 0 || p > 65535 {
		return false, []error{&InvalidPortError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidDurationError.
func (e *InvalidDurationError) Error() string {
	return fmt.Sprintf("invalid duration %q (use a non-negative value such as 30s or 2m)", e.Value)
}

// Unwrap returns ErrInvalidDuration for errors.Is() compatibility.
func (e *InvalidDurationError) Unwrap() error { return ErrInvalidDuration }

// String returns the string representation of the Duration.
func (d Duration) String() string { return string(d) }

// Value parses d. The empty Duration is zero.
func (d Duration) Value() (time.Duration, error) {
	if strings.TrimSpace(string(d)) == "" {
		return 0, nil
	}
	v, err := time.ParseDuration(string(d))
	if err != nil || v < 0 {
		return 0, &InvalidDurationError{Value: d}
	}
	return v, nil
}

// IsValid returns whether the Duration parses to a non-negative value.
func (d Duration) IsValid() (bool, []error) {
	if _, err := d.Value(); err != nil {
		return false, []error{err}
	}
	return true, nil
}

// IsValid returns whether the EngineConfig has valid fields.
func (c EngineConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Timeout.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	for i, f := range c.EnvFiles {
		if strings.TrimSpace(strings.TrimSuffix(f, "?")) == "" {
			errs = append(errs, fmt.Errorf("env_files[%d]: empty path", i))
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidEngineConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidEngineConfigError.
func (e *InvalidEngineConfigError) Error() string {
	return fmt.Sprintf("invalid engine config: %s", joinErrors(e.FieldErrors))
}

// Unwrap returns ErrInvalidEngineConfig for errors.Is() compatibility.
func (e *InvalidEngineConfigError) Unwrap() error { return ErrInvalidEngineConfig }

// IsValid returns whether the UIConfig has valid fields.
// It delegates to ColorScheme.IsValid(); the remaining fields are free text.
func (c UIConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidUIConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidUIConfigError.
func (e *InvalidUIConfigError) Error() string {
	return fmt.Sprintf("invalid UI config: %s", joinErrors(e.FieldErrors))
}

// Unwrap returns ErrInvalidUIConfig for errors.Is() compatibility.
func (e *InvalidUIConfigError) Unwrap() error { return ErrInvalidUIConfig }

// IsValid returns whether the SSHConfig has valid fields.
func (c SSHConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Port.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidServerConfigError{Section: "ssh", FieldErrors: errs}}
	}
	return true, nil
}

// IsValid returns whether the WebSocketConfig has valid fields.
func (c WebSocketConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Port.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if !strings.HasPrefix(c.Path, "/") {
		errs = append(errs, fmt.Errorf("path %q must start with '/'", c.Path))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidServerConfigError{Section: "websocket", FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidServerConfigError.
func (e *InvalidServerConfigError) Error() string {
	return fmt.Sprintf("invalid %s config: %s", e.Section, joinErrors(e.FieldErrors))
}

// Unwrap returns ErrInvalidServerConfig for errors.Is() compatibility.
func (e *InvalidServerConfigError) Unwrap() error { return ErrInvalidServerConfig }

// IsValid returns whether the Config has valid fields.
// It delegates to the IsValid method of every section.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	for _, check := range []func() (bool, []error){c.Engine.IsValid, c.UI.IsValid, c.SSH.IsValid, c.WebSocket.IsValid} {
		if valid, fieldErrs := check(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s", joinErrors(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

func joinErrors(errs []error) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			WorkDir:           "", // process working directory
			InheritEnv:        true,
			Env:               map[string]string{},
			EnvFiles:          []string{},
			FailOnNonZeroExit: true,
			Timeout:           "0s",
		},
		UI: UIConfig{
			ColorScheme:        ColorSchemeAuto,
			Verbose:            false,
			HistoryFile:        "",
			Prompt:             "$ ",
			ContinuationPrompt: "> ",
		},
		SSH: SSHConfig{
			Host: "127.0.0.1",
			Port: DefaultSSHPort,
		},
		WebSocket: WebSocketConfig{
			Host:           "127.0.0.1",
			Port:           DefaultWebSocketPort,
			Path:           "/kernel",
			AllowedOrigins: []string{},
		},
	}
}
