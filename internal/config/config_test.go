// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"shkernel/internal/issue"
	"shkernel/pkg/cueutil"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func load(t *testing.T, opts LoadOptions) (*Loaded, error) {
	t.Helper()
	if opts.ConfigFilePath == "" && opts.ConfigDirPath == "" {
		opts.ConfigDirPath = t.TempDir()
	}
	return NewProvider().Load(context.Background(), opts)
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if valid, errs := cfg.IsValid(); !valid {
		t.Fatalf("DefaultConfig() is invalid: %v", errs)
	}
	if !cfg.Engine.InheritEnv || !cfg.Engine.FailOnNonZeroExit {
		t.Error("expected inherit_env and fail_on_nonzero_exit to default to true")
	}
	if d, err := cfg.Engine.Timeout.Value(); err != nil || d != 0 {
		t.Errorf("default timeout = %v, %v; want 0", d, err)
	}
	if cfg.UI.ColorScheme != ColorSchemeAuto {
		t.Errorf("expected default color scheme to be auto, got %s", cfg.UI.ColorScheme)
	}
	if cfg.SSH.Port != DefaultSSHPort || cfg.WebSocket.Port != DefaultWebSocketPort {
		t.Errorf("default ports = %d, %d", cfg.SSH.Port, cfg.WebSocket.Port)
	}
	if cfg.SSH.Host != "127.0.0.1" || cfg.WebSocket.Host != "127.0.0.1" {
		t.Error("servers should bind to loopback by default")
	}
}

// overrideConfigDir must not be used from parallel tests.
func overrideConfigDir(t *testing.T, dir string) {
	t.Helper()

	prev := configDirOverride
	configDirOverride = dir
	t.Cleanup(func() { configDirOverride = prev })
}

func TestConfigDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux")
	}
	overrideConfigDir(t, "")

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error: %v", err)
	}
	if want := filepath.Join(xdg, AppName); dir != want {
		t.Errorf("ConfigDir() = %q, want %q", dir, want)
	}

	overrideConfigDir(t, "/override")
	if dir, _ := ConfigDir(); dir != "/override" {
		t.Errorf("ConfigDir() with override = %q", dir)
	}
}

func TestLoadDefaultsWhenNoConfigFile(t *testing.T) {
	t.Parallel()

	loaded, err := load(t, LoadOptions{})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Path != "" {
		t.Errorf("Path = %q, want empty", loaded.Path)
	}
	if loaded.Config.UI.Prompt != DefaultConfig().UI.Prompt {
		t.Errorf("Prompt = %q", loaded.Config.UI.Prompt)
	}
}

func TestLoadFromConfigDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	content := "ui: prompt: \"bash> \"\n"
	if err := os.WriteFile(filepath.Join(dir, "config.cue"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := load(t, LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Path != filepath.Join(dir, "config.cue") {
		t.Errorf("Path = %q", loaded.Path)
	}
	if loaded.Config.UI.Prompt != "bash> " {
		t.Errorf("Prompt = %q, want %q", loaded.Config.UI.Prompt, "bash> ")
	}
	// Unset keys keep their defaults.
	if loaded.Config.UI.ContinuationPrompt != "> " {
		t.Errorf("ContinuationPrompt = %q", loaded.Config.UI.ContinuationPrompt)
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
engine: {
	work_dir: "/srv"
	inherit_env: false
	env: {
		GREETING: "hello"
		MixedCase: "kept"
	}
	env_files: [".env?"]
	fail_on_nonzero_exit: false
	timeout: "1m30s"
}
ssh: {
	port: 0
	token: "secret"
}
websocket: {
	path: "/ws"
	allowed_origins: ["https://notebook.example"]
}
`)

	loaded, err := load(t, LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	cfg := loaded.Config

	if cfg.Engine.WorkDir != "/srv" || cfg.Engine.InheritEnv || cfg.Engine.FailOnNonZeroExit {
		t.Errorf("Engine = %+v", cfg.Engine)
	}
	if cfg.Engine.Env["GREETING"] != "hello" || cfg.Engine.Env["MixedCase"] != "kept" {
		t.Errorf("Env = %v, want keys with their original case", cfg.Engine.Env)
	}
	if len(cfg.Engine.EnvFiles) != 1 || cfg.Engine.EnvFiles[0] != ".env?" {
		t.Errorf("EnvFiles = %v", cfg.Engine.EnvFiles)
	}
	if d, _ := cfg.Engine.Timeout.Value(); d != 90*time.Second {
		t.Errorf("Timeout = %v, want 1m30s", d)
	}
	if cfg.SSH.Port != 0 || cfg.SSH.Token != "secret" || cfg.SSH.Host != "127.0.0.1" {
		t.Errorf("SSH = %+v", cfg.SSH)
	}
	if cfg.WebSocket.Path != "/ws" || len(cfg.WebSocket.AllowedOrigins) != 1 {
		t.Errorf("WebSocket = %+v", cfg.WebSocket)
	}
}

func TestLoadCustomPathNotFound(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "missing.cue")
	_, err := load(t, LoadOptions{ConfigFilePath: missing})
	if err == nil {
		t.Fatal("Load() error = nil for a missing explicit file")
	}

	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("error is %T, want *issue.ActionableError", err)
	}
	if ae.Resource != missing || !ae.HasSuggestions() {
		t.Errorf("ActionableError = %+v", ae)
	}
}

func TestLoadRejectsInvalidFiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{name: "syntax error", content: "ui: {", wantMsg: "config.cue"},
		{name: "unknown field", content: "engine: shell: \"zsh\"", wantMsg: "engine.shell"},
		{name: "wrong type", content: "ssh: port: \"22\"", wantMsg: "ssh.port"},
		{name: "port out of range", content: "websocket: port: 70000", wantMsg: "websocket.port"},
		{name: "bad color scheme", content: "ui: color_scheme: \"blue\"", wantMsg: "ui.color_scheme"},
		{name: "bad timeout", content: "engine: timeout: \"soon\"", wantMsg: "engine.timeout"},
		{name: "relative websocket path", content: "websocket: path: \"kernel\"", wantMsg: "websocket.path"},
		{name: "bad env name", content: "engine: env: \"1BAD\": \"x\"", wantMsg: "engine.env"},
		{name: "oversized file", content: "ui: prompt: \"" + strings.Repeat("x", maxConfigFileSize) + "\"\n", wantMsg: "exceeds maximum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := load(t, LoadOptions{ConfigFilePath: writeConfig(t, tt.content)})
			if err == nil {
				t.Fatal("Load() error = nil")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) || ae.Operation != "load configuration" {
				t.Errorf("error should be an ActionableError for 'load configuration', got %T", err)
			}
		})
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("SHKERNEL_SSH_PORT", "2022")
	t.Setenv("SHKERNEL_UI_VERBOSE", "true")
	t.Setenv("SHKERNEL_ENGINE_TIMEOUT", "5s")

	path := writeConfig(t, "ssh: port: 3000\nui: verbose: false\n")
	loaded, err := load(t, LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	cfg := loaded.Config
	if cfg.SSH.Port != 2022 {
		t.Errorf("SSH.Port = %d, want the environment to win", cfg.SSH.Port)
	}
	if !cfg.UI.Verbose {
		t.Error("UI.Verbose = false, want true from the environment")
	}
	if cfg.Engine.Timeout != "5s" {
		t.Errorf("Engine.Timeout = %q", cfg.Engine.Timeout)
	}
}

func TestLoadEnvironmentValidation(t *testing.T) {
	t.Setenv("SHKERNEL_UI_COLOR_SCHEME", "neon")

	_, err := load(t, LoadOptions{})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Load() error = %v, want ErrInvalidConfig", err)
	}
	if !strings.Contains(err.Error(), `"neon"`) {
		t.Errorf("error should name the rejected value: %v", err)
	}
}

func TestLoadCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestGenerateCUELoadsBack(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Engine.Env = map[string]string{"_HIDDEN_LOOKING": "x", "PATH_EXTRA": "/opt/bin"}
	cfg.Engine.EnvFiles = []string{"a.env", "b.env?"}
	cfg.Engine.Timeout = "10s"
	cfg.UI.ColorScheme = ColorSchemeDark
	cfg.SSH.Token = "t0k\"en"
	cfg.WebSocket.AllowedOrigins = []string{"https://a.example"}

	loaded, err := load(t, LoadOptions{ConfigFilePath: writeConfig(t, GenerateCUE(cfg))})
	if err != nil {
		t.Fatalf("generated CUE does not load: %v\n%s", err, GenerateCUE(cfg))
	}
	got := loaded.Config
	if got.Engine.Env["_HIDDEN_LOOKING"] != "x" || got.Engine.Env["PATH_EXTRA"] != "/opt/bin" {
		t.Errorf("Env = %v", got.Engine.Env)
	}
	if got.SSH.Token != cfg.SSH.Token || got.UI.ColorScheme != ColorSchemeDark || got.Engine.Timeout != "10s" {
		t.Errorf("loaded config = %+v", got)
	}
	if len(got.Engine.EnvFiles) != 2 || len(got.WebSocket.AllowedOrigins) != 1 {
		t.Errorf("lists = %v, %v", got.Engine.EnvFiles, got.WebSocket.AllowedOrigins)
	}
}

func TestGenerateTOML(t *testing.T) {
	t.Parallel()

	out, err := GenerateTOML(DefaultConfig())
	if err != nil {
		t.Fatalf("GenerateTOML() error: %v", err)
	}
	for _, want := range []string{"[engine]", "[ui]", "[ssh]", "[websocket]", "port = 2222", "/kernel"} {
		if !strings.Contains(out, want) {
			t.Errorf("TOML output missing %q:\n%s", want, out)
		}
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), AppName)
	path, created, err := CreateDefaultConfig(dir)
	if err != nil || !created {
		t.Fatalf("CreateDefaultConfig() = %q, %v, %v", path, created, err)
	}
	if path != filepath.Join(dir, "config.cue") {
		t.Errorf("path = %q", path)
	}

	if _, created, err := CreateDefaultConfig(dir); err != nil || created {
		t.Errorf("second CreateDefaultConfig() created = %v, err = %v; want an untouched file", created, err)
	}

	loaded, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() of the default file error: %v", err)
	}
	if loaded.Path != path {
		t.Errorf("Load() read %q, want %q", loaded.Path, path)
	}
}

func TestDefaultPaths(t *testing.T) {
	overrideConfigDir(t, "/cfg")

	if p, _ := (UIConfig{}).HistoryPath(); p != filepath.Join("/cfg", "history") {
		t.Errorf("HistoryPath() = %q", p)
	}
	if p, _ := (UIConfig{HistoryFile: "/tmp/h"}).HistoryPath(); p != "/tmp/h" {
		t.Errorf("HistoryPath() = %q", p)
	}
	if p, _ := (SSHConfig{}).HostKey(); p != filepath.Join("/cfg", "ssh_host_ed25519") {
		t.Errorf("HostKey() = %q", p)
	}
}

func TestValidateFile(t *testing.T) {
	t.Parallel()

	cfg, err := ValidateFile(writeConfig(t, "ssh: port: 22\nengine: env: {A: \"1\"}\n"))
	if err != nil {
		t.Fatalf("ValidateFile() error: %v", err)
	}
	if cfg.SSH.Port != 22 || cfg.Engine.Env["A"] != "1" {
		t.Errorf("ValidateFile() = %+v", cfg)
	}
	// Only what the file sets; no defaults.
	if cfg.UI.Prompt != "" {
		t.Errorf("UI.Prompt = %q, want empty", cfg.UI.Prompt)
	}

	_, err = ValidateFile(writeConfig(t, "ssh: port: -1\n"))
	if !errors.Is(err, cueutil.ErrInvalidCUE) || !strings.Contains(err.Error(), "ssh.port") {
		t.Errorf("ValidateFile() error = %v", err)
	}
}
