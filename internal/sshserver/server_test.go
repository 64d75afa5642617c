// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"shkernel/internal/app/execute"
	"shkernel/internal/config"
	"shkernel/internal/core/serverbase"
	"shkernel/internal/kernel"
	"shkernel/internal/repl"
	"shkernel/internal/testutil"

	"github.com/charmbracelet/log"
	gossh "golang.org/x/crypto/ssh"
)

const testToken = "s3cret"

func startServer(t *testing.T, cfg Config, factory KernelFactory) *Server {
	t.Helper()

	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	cfg.HostKeyPath = filepath.Join(t.TempDir(), "keys", "host_ed25519")
	if factory == nil {
		kcfg := config.DefaultConfig()
		kcfg.Engine.InheritEnv = false
		kcfg.Engine.WorkDir = t.TempDir()
		kcfg.Engine.Env = map[string]string{"PATH": os.Getenv("PATH")}
		factory = NewKernelFactory(kcfg, "", log.New(io.Discard))
	}

	srv := New(cfg, factory,
		WithLogger(log.New(io.Discard)),
		WithBaseOptions(serverbase.WithShutdownTimeout(time.Second)),
	)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	testutil.DeferStop(t, srv)
	return srv
}

func dial(t *testing.T, addr, password string) *gossh.Client {
	t.Helper()

	client, err := gossh.Dial("tcp", addr, &gossh.ClientConfig{
		User:            "tester",
		Auth:            []gossh.AuthMethod{gossh.Password(password)},
		HostKeyCallback: gossh.InsecureIgnoreHostKey(), //nolint:gosec // test server key
		Timeout:         5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newSession(t *testing.T, client *gossh.Client) *gossh.Session {
	t.Helper()

	sess, err := client.NewSession()
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func exitStatus(t *testing.T, err error) int {
	t.Helper()

	if err == nil {
		return 0
	}
	var exit *gossh.ExitError
	if !errors.As(err, &exit) {
		t.Fatalf("session error = %v, want exit status", err)
	}
	return exit.ExitStatus()
}

func TestCommandSessions(t *testing.T) {
	t.Parallel()

	srv := startServer(t, Config{Token: testToken}, nil)
	client := dial(t, srv.Addr(), testToken)

	tests := []struct {
		name       string
		command    string
		stdin      string
		wantOut    string
		wantErr    string
		wantStatus int
	}{
		{name: "output", command: "x=3; echo $((x+1))", wantOut: "4\n"},
		{name: "expression value", command: "((2*21))", wantOut: "42\n"},
		{name: "client environment", command: "echo $SSH_USER", wantOut: "tester\n"},
		{name: "stdin", command: "cat", stdin: "piped\n", wantOut: "piped\n"},
		{name: "exit status", command: "exit 3", wantStatus: 3},
		{name: "runtime failure", command: "false", wantErr: "exit status 1", wantStatus: 1},
		{name: "incomplete", command: "if true; then", wantErr: "error:", wantStatus: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sess := newSession(t, client)
			var stderr strings.Builder
			sess.Stderr = &stderr
			sess.Stdin = strings.NewReader(tt.stdin)

			out, err := sess.Output(tt.command)
			if got := exitStatus(t, err); got != tt.wantStatus {
				t.Errorf("exit status = %d, want %d (stderr %q)", got, tt.wantStatus, stderr.String())
			}
			if tt.wantOut != "" && string(out) != tt.wantOut {
				t.Errorf("stdout = %q, want %q", out, tt.wantOut)
			}
			if tt.wantErr != "" && !strings.Contains(stderr.String(), tt.wantErr) {
				t.Errorf("stderr = %q, want it to contain %q", stderr.String(), tt.wantErr)
			}
		})
	}
}

func TestPipedSessionKeepsState(t *testing.T) {
	t.Parallel()

	srv := startServer(t, Config{Token: testToken}, nil)
	client := dial(t, srv.Addr(), testToken)

	sess := newSession(t, client)
	sess.Stdin = strings.NewReader("x=2\nif true; then\n  echo $x\nfi\n((x+5))\nexit 7\necho unreachable\n")
	var out strings.Builder
	sess.Stdout = &out
	if err := sess.Shell(); err != nil {
		t.Fatalf("Shell() error = %v", err)
	}
	if got := exitStatus(t, sess.Wait()); got != 7 {
		t.Errorf("exit status = %d, want 7", got)
	}
	if out.String() != "2\n7\n" {
		t.Errorf("stdout = %q, want %q", out.String(), "2\n7\n")
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	t.Parallel()

	srv := startServer(t, Config{Token: testToken}, nil)
	client := dial(t, srv.Addr(), testToken)

	first := newSession(t, client)
	if _, err := first.Output("shared=1"); err != nil {
		t.Fatalf("first session error = %v", err)
	}

	second := newSession(t, client)
	out, err := second.Output(`echo "[$shared]"`)
	if err != nil {
		t.Fatalf("second session error = %v", err)
	}
	if string(out) != "[]\n" {
		t.Errorf("stdout = %q, want empty variable", out)
	}
}

func TestPasswordAuthentication(t *testing.T) {
	t.Parallel()

	srv := startServer(t, Config{Token: testToken}, nil)

	_, err := gossh.Dial("tcp", srv.Addr(), &gossh.ClientConfig{
		User:            "tester",
		Auth:            []gossh.AuthMethod{gossh.Password("wrong")},
		HostKeyCallback: gossh.InsecureIgnoreHostKey(), //nolint:gosec // test server key
		Timeout:         5 * time.Second,
	})
	if err == nil {
		t.Fatal("Dial() with a wrong token should fail")
	}
}

func TestLoopbackWithoutAuthentication(t *testing.T) {
	t.Parallel()

	srv := startServer(t, Config{}, nil)
	client := dial(t, srv.Addr(), "anything")

	out, err := newSession(t, client).Output("echo open")
	if err != nil {
		t.Fatalf("session error = %v", err)
	}
	if string(out) != "open\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestStartRefusesUnauthenticatedRemote(t *testing.T) {
	t.Parallel()

	srv := New(Config{Host: "0.0.0.0", HostKeyPath: filepath.Join(t.TempDir(), "key")},
		func(SessionEnv) (*execute.Session, error) { return nil, errors.New("unused") },
		WithLogger(log.New(io.Discard)),
	)
	err := srv.Start(context.Background())
	if !errors.Is(err, ErrUnauthenticatedRemote) {
		t.Fatalf("Start() error = %v, want ErrUnauthenticatedRemote", err)
	}
	if srv.State() != serverbase.StateCreated {
		t.Errorf("state = %s, want created", srv.State())
	}
}

func TestKernelFactoryFailure(t *testing.T) {
	t.Parallel()

	srv := startServer(t, Config{Token: testToken}, func(SessionEnv) (*execute.Session, error) {
		return nil, errors.New("no engine today")
	})
	client := dial(t, srv.Addr(), testToken)

	sess := newSession(t, client)
	var stderr strings.Builder
	sess.Stderr = &stderr
	err := sess.Run("echo hi")
	if got := exitStatus(t, err); got != 1 {
		t.Errorf("exit status = %d, want 1", got)
	}
	if !strings.Contains(stderr.String(), "no engine today") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestInteractiveSession(t *testing.T) {
	t.Parallel()

	srv := startServer(t, Config{Token: testToken}, nil)
	client := dial(t, srv.Addr(), testToken)

	sess := newSession(t, client)
	if err := sess.RequestPty("xterm", 24, 80, gossh.TerminalModes{}); err != nil {
		t.Fatalf("RequestPty() error = %v", err)
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		t.Fatalf("StdinPipe() error = %v", err)
	}
	var out strings.Builder
	sess.Stdout = &out
	if err := sess.Shell(); err != nil {
		t.Fatalf("Shell() error = %v", err)
	}

	if _, err := io.WriteString(stdin, "echo interactive\rexit 4\r"); err != nil {
		t.Fatalf("write error = %v", err)
	}
	if got := exitStatus(t, sess.Wait()); got != 4 {
		t.Errorf("exit status = %d, want 4", got)
	}
	if !strings.Contains(out.String(), "interactive") {
		t.Errorf("output = %q, want the echoed text", out.String())
	}
	if !strings.Contains(out.String(), "kernel") {
		t.Errorf("output = %q, want the banner", out.String())
	}
}

func TestCommonPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		options []string
		want    string
	}{
		{nil, ""},
		{[]string{"echo"}, "echo"},
		{[]string{"export", "exec", "exit"}, "ex"},
		{[]string{"alpha", "beta"}, ""},
		{[]string{"café/", "cafè/"}, "caf"},
		{[]string{"naïve.txt", "naïf.txt"}, "naï"},
		{[]string{"日本.sh", "日記.sh"}, "日"},
	}

	for _, tt := range tests {
		got := commonPrefix(tt.options)
		if got != tt.want {
			t.Errorf("commonPrefix(%q) = %q, want %q", tt.options, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("commonPrefix(%q) = %q is not valid UTF-8", tt.options, got)
		}
	}
}

type completionKernel struct {
	repl.Kernel
	options kernel.ReplacementOptions
}

func (k completionKernel) Complete(string, int) (kernel.ReplacementOptions, bool) {
	return k.options, len(k.options.Options) > 0
}

func TestCompleteLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		line     string
		pos      int
		options  kernel.ReplacementOptions
		wantLine string
		wantPos  int
		wantOK   bool
	}{
		{
			name:     "single option",
			line:     "ech",
			pos:      3,
			options:  kernel.ReplacementOptions{Options: []string{"echo"}, ReplaceStart: 0, ReplaceEnd: 3},
			wantLine: "echo", wantPos: 4, wantOK: true,
		},
		{
			name:     "shared prefix",
			line:     "x; e",
			pos:      4,
			options:  kernel.ReplacementOptions{Options: []string{"export", "exit"}, ReplaceStart: 3, ReplaceEnd: 4},
			wantLine: "x; ex", wantPos: 5, wantOK: true,
		},
		{
			name:     "keeps tail",
			line:     "gre foo",
			pos:      3,
			options:  kernel.ReplacementOptions{Options: []string{"greet"}, ReplaceStart: 0, ReplaceEnd: 3},
			wantLine: "greet foo", wantPos: 5, wantOK: true,
		},
		{name: "no options", line: "zz", pos: 2},
		{
			name:    "prefix shorter than word",
			line:    "abc",
			pos:     3,
			options: kernel.ReplacementOptions{Options: []string{"abcd", "xyz"}, ReplaceStart: 0, ReplaceEnd: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			line, pos, ok := completeLine(completionKernel{options: tt.options}, tt.line, tt.pos)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && (line != tt.wantLine || pos != tt.wantPos) {
				t.Errorf("completeLine() = %q, %d; want %q, %d", line, pos, tt.wantLine, tt.wantPos)
			}
		})
	}
}
