// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"shkernel/internal/issue"
	"shkernel/pkg/cueutil"

	"cuelang.org/go/cue"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "shkernel"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment variables that override config keys,
	// e.g. SHKERNEL_SSH_PORT for ssh.port.
	EnvPrefix = "SHKERNEL"

	// maxConfigFileSize bounds config.cue; the full default file is under 2KB.
	maxConfigFileSize = 256 << 10

	historyFileName = "history"
	hostKeyFileName = "ssh_host_ed25519"
)

//go:embed config_schema.cue
var configSchema []byte

// configDirOverride replaces the platform lookup in tests.
var configDirOverride string

// ConfigDir returns the shkernel configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// HistoryPath returns the terminal history file, defaulting to one in the
// config directory.
func (c UIConfig) HistoryPath() (string, error) {
	if c.HistoryFile != "" {
		return c.HistoryFile, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, historyFileName), nil
}

// HostKey returns the SSH host key path, defaulting to one in the config
// directory.
func (c SSHConfig) HostKey() (string, error) {
	if c.HostKeyPath != "" {
		return c.HostKeyPath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, hostKeyFileName), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state. It returns the path of the file that was loaded, or ""
// when only defaults and environment overrides apply.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := resolveConfigFile(opts)
	if err != nil {
		return nil, "", err
	}

	var fileEnv map[string]string
	if path != "" {
		fileEnv, err = loadCUEIntoViper(v, path)
		if err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'shkernel config show' to see the effective configuration").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	// Viper lowercases map keys; variable names are case sensitive.
	if fileEnv != nil {
		cfg.Engine.Env = fileEnv
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithSuggestion("Fix the reported fields in the config file or the " + EnvPrefix + "_* environment variables").
			Wrap(errs[0]).
			BuildError()
	}

	return &cfg, path, nil
}

// resolveConfigFile picks the config file to load: the explicit path, then
// the config directory, then the current directory. A missing explicit path
// is an error; otherwise no file is fine.
func resolveConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Run 'shkernel config init' to create a default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	fileName := ConfigFileName + "." + ConfigFileExt
	if p := filepath.Join(cfgDir, fileName); fileExists(p) {
		return p, nil
	}
	if fileExists(fileName) {
		return fileName, nil
	}
	return "", nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("engine.work_dir", d.Engine.WorkDir)
	v.SetDefault("engine.inherit_env", d.Engine.InheritEnv)
	v.SetDefault("engine.env", d.Engine.Env)
	v.SetDefault("engine.env_files", d.Engine.EnvFiles)
	v.SetDefault("engine.fail_on_nonzero_exit", d.Engine.FailOnNonZeroExit)
	v.SetDefault("engine.timeout", string(d.Engine.Timeout))
	v.SetDefault("ui.color_scheme", string(d.UI.ColorScheme))
	v.SetDefault("ui.verbose", d.UI.Verbose)
	v.SetDefault("ui.history_file", d.UI.HistoryFile)
	v.SetDefault("ui.prompt", d.UI.Prompt)
	v.SetDefault("ui.continuation_prompt", d.UI.ContinuationPrompt)
	v.SetDefault("ssh.host", d.SSH.Host)
	v.SetDefault("ssh.port", int(d.SSH.Port))
	v.SetDefault("ssh.host_key_path", d.SSH.HostKeyPath)
	v.SetDefault("ssh.authorized_keys_path", d.SSH.AuthorizedKeysPath)
	v.SetDefault("ssh.token", d.SSH.Token)
	v.SetDefault("websocket.host", d.WebSocket.Host)
	v.SetDefault("websocket.port", int(d.WebSocket.Port))
	v.SetDefault("websocket.path", d.WebSocket.Path)
	v.SetDefault("websocket.allowed_origins", d.WebSocket.AllowedOrigins)
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into
// Viper over the defaults. It returns engine.env as written in the file so
// its keys keep their case.
func loadCUEIntoViper(v *viper.Viper, path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	unified, err := schema.Unify(data, documentOptions(path)...)
	if err != nil {
		return nil, err
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return nil, cueutil.FormatError(err, path)
	}
	if err := v.MergeConfigMap(configMap); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	var env map[string]string
	if envValue := unified.LookupPath(cue.ParsePath("engine.env")); envValue.Exists() {
		if err := envValue.Decode(&env); err != nil {
			return nil, cueutil.FormatError(err, path)
		}
	}
	return env, nil
}

// documentOptions checks a config file read from path. Fields are optional,
// so values need not be concrete.
func documentOptions(path string) []cueutil.Option {
	return []cueutil.Option{
		cueutil.WithFilename(path),
		cueutil.WithConcrete(false),
		cueutil.WithMaxFileSize(maxConfigFileSize),
	}
}

// compileSchema compiles the embedded schema. Each load gets its own CUE
// context, which is not safe for concurrent use.
func compileSchema() (*cueutil.Schema, error) {
	return cueutil.CompileSchema(configSchema, "#Config")
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default config file into configDirPath, or
// the standard config directory when it is empty, unless one exists. It
// returns the file path and whether the file was created.
func CreateDefaultConfig(configDirPath string) (string, bool, error) {
	cfgDir, err := configDirWithOverride(configDirPath)
	if err != nil {
		return "", false, err
	}

	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, false, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}

	return cfgPath, true, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// shkernel configuration file\n")
	sb.WriteString("// Every field is optional. Environment variables named " + EnvPrefix + "_<SECTION>_<KEY> override it.\n")

	sb.WriteString("\nengine: {\n")
	fmt.Fprintf(&sb, "\twork_dir: %q\n", cfg.Engine.WorkDir)
	fmt.Fprintf(&sb, "\tinherit_env: %v\n", cfg.Engine.InheritEnv)
	if len(cfg.Engine.Env) > 0 {
		sb.WriteString("\tenv: {\n")
		for _, k := range slices.Sorted(maps.Keys(cfg.Engine.Env)) {
			fmt.Fprintf(&sb, "\t\t%q: %q\n", k, cfg.Engine.Env[k])
		}
		sb.WriteString("\t}\n")
	}
	writeCUEList(&sb, "env_files", cfg.Engine.EnvFiles)
	fmt.Fprintf(&sb, "\tfail_on_nonzero_exit: %v\n", cfg.Engine.FailOnNonZeroExit)
	fmt.Fprintf(&sb, "\ttimeout: %q\n", cfg.Engine.Timeout)
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	if cfg.UI.HistoryFile != "" {
		fmt.Fprintf(&sb, "\thistory_file: %q\n", cfg.UI.HistoryFile)
	}
	fmt.Fprintf(&sb, "\tprompt: %q\n", cfg.UI.Prompt)
	fmt.Fprintf(&sb, "\tcontinuation_prompt: %q\n", cfg.UI.ContinuationPrompt)
	sb.WriteString("}\n")

	sb.WriteString("\nssh: {\n")
	fmt.Fprintf(&sb, "\thost: %q\n", cfg.SSH.Host)
	fmt.Fprintf(&sb, "\tport: %d\n", cfg.SSH.Port)
	if cfg.SSH.HostKeyPath != "" {
		fmt.Fprintf(&sb, "\thost_key_path: %q\n", cfg.SSH.HostKeyPath)
	}
	if cfg.SSH.AuthorizedKeysPath != "" {
		fmt.Fprintf(&sb, "\tauthorized_keys_path: %q\n", cfg.SSH.AuthorizedKeysPath)
	}
	if cfg.SSH.Token != "" {
		fmt.Fprintf(&sb, "\ttoken: %q\n", cfg.SSH.Token)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nwebsocket: {\n")
	fmt.Fprintf(&sb, "\thost: %q\n", cfg.WebSocket.Host)
	fmt.Fprintf(&sb, "\tport: %d\n", cfg.WebSocket.Port)
	fmt.Fprintf(&sb, "\tpath: %q\n", cfg.WebSocket.Path)
	writeCUEList(&sb, "allowed_origins", cfg.WebSocket.AllowedOrigins)
	sb.WriteString("}\n")

	return sb.String()
}

func writeCUEList(sb *strings.Builder, name string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\t%s: [\n", name)
	for _, item := range items {
		fmt.Fprintf(sb, "\t\t%q,\n", item)
	}
	sb.WriteString("\t]\n")
}

// GenerateTOML renders the configuration as TOML.
func GenerateTOML(cfg *Config) (string, error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode config as TOML: %w", err)
	}
	return string(data), nil
}

// ValidateFile checks a config file against the schema without merging it
// over defaults. It returns the fields the file sets.
func ValidateFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	result, err := cueutil.Decode[Config](schema, data, documentOptions(path)...)
	if err != nil {
		return nil, err
	}
	return result.Value, nil
}
