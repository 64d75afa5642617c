// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"shkernel/internal/kernel"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// valueVar receives the result of arithmetic expressions. It is unset again
// after every evaluation and hidden from completion.
const valueVar = "__shkernel_value"

const (
	typeShellError  = "shell error"
	typeTimeout     = "timeout"
	typeInterrupted = "interrupted"
)

type (
	// EngineConfig configures a VirtualEngine.
	EngineConfig struct {
		// WorkDir is the initial working directory. Empty means the process
		// working directory.
		WorkDir string
		// Env is the complete initial environment, see BuildEnv.
		Env map[string]string
		// Stdin is given to commands. Nil means commands read nothing.
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
		// FailOnNonZeroExit reports statements that exit non-zero as runtime
		// exceptions.
		FailOnNonZeroExit bool
		// Timeout bounds each evaluated unit. Zero means no limit.
		Timeout time.Duration
		// KillTimeout is how long external commands get between interrupt and
		// kill when an evaluation is cancelled. Zero keeps the interpreter
		// default.
		KillTimeout time.Duration
		Logger      *log.Logger
	}

	// VirtualEngine evaluates shell source with an embedded interpreter that
	// keeps variables, functions and the working directory across calls.
	VirtualEngine struct {
		runner  *interp.Runner
		cfg     EngineConfig
		logger  *log.Logger
		stdout  *switchWriter
		stderr  *switchWriter
		counter int

		diagnostics map[string][]string
		functions   map[string]*functionRecord

		exitCode ExitCode
		exited   bool
		closed   bool
	}

	// functionRecord tracks the snippet that declared a function and the
	// commands its body calls that could not be resolved.
	functionRecord struct {
		name       string
		snippet    kernel.Snippet
		order      int
		unresolved []string
	}

	// unresolvedCallError aborts a run that reached a command a function
	// references but which is still undefined.
	unresolvedCallError struct {
		Name     string
		Function string
	}

	// switchWriter lets the engine redirect output after the interpreter was
	// created.
	switchWriter struct {
		mu sync.Mutex
		w  io.Writer
	}
)

func (e *unresolvedCallError) Error() string {
	return fmt.Sprintf("%s: command not found (referenced by function %s)", e.Name, e.Function)
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *switchWriter) set(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}

// NewVirtualEngine creates an engine with a fresh interpreter.
func NewVirtualEngine(cfg EngineConfig) (*VirtualEngine, error) {
	if err := validateWorkDir(cfg.WorkDir); err != nil {
		return nil, err
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "engine"})
	}

	e := &VirtualEngine{
		cfg:         cfg,
		logger:      logger,
		stdout:      &switchWriter{w: cfg.Stdout},
		stderr:      &switchWriter{w: cfg.Stderr},
		diagnostics: make(map[string][]string),
		functions:   make(map[string]*functionRecord),
	}

	middlewares := []func(interp.ExecHandlerFunc) interp.ExecHandlerFunc{e.execHandler}
	if cfg.KillTimeout > 0 {
		middlewares = append(middlewares, func(interp.ExecHandlerFunc) interp.ExecHandlerFunc {
			return interp.DefaultExecHandler(cfg.KillTimeout)
		})
	}

	runner, err := interp.New(
		interp.Dir(cfg.WorkDir),
		interp.Env(expand.ListEnviron(EnvToSlice(cfg.Env)...)),
		interp.StdIO(cfg.Stdin, e.stdout, e.stderr),
		interp.ExecHandlers(middlewares...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create interpreter: %w", err)
	}
	e.runner = runner
	return e, nil
}

// SetOutput redirects the output of subsequent evaluations.
func (e *VirtualEngine) SetOutput(stdout, stderr io.Writer) {
	e.stdout.set(stdout)
	e.stderr.set(stderr)
}

// Dir returns the current working directory of the session.
func (e *VirtualEngine) Dir() string { return e.runner.Dir }

// AnalyzeCompletion finds the first complete statement of source.
//
// A statement is complete once the parser has seen its end. Anything the
// parser reports as needing more input is definitely incomplete. Other syntax
// errors are handed out as one complete unit so that Evaluate rejects them
// with diagnostics.
func (e *VirtualEngine) AnalyzeCompletion(source string) kernel.CompletionInfo {
	if strings.TrimSpace(source) == "" {
		return kernel.CompletionInfo{Completeness: kernel.Empty}
	}

	var stmts []*syntax.Stmt
	err := syntax.NewParser().Stmts(strings.NewReader(source), func(s *syntax.Stmt) bool {
		stmts = append(stmts, s)
		return len(stmts) < 2
	})

	switch {
	case len(stmts) >= 2:
		end := int(stmts[1].Pos().Offset())
		return kernel.CompletionInfo{Completeness: kernel.Complete, Consumed: source[:end], Remainder: source[end:]}
	case len(stmts) == 1 && err != nil && !hasHeredoc(stmts[0]):
		end := int(stmts[0].End().Offset())
		return kernel.CompletionInfo{Completeness: kernel.Complete, Consumed: source[:end], Remainder: source[end:]}
	case err != nil && syntax.IsIncomplete(err):
		return kernel.CompletionInfo{Completeness: kernel.DefinitelyIncomplete, Remainder: strings.TrimSpace(source)}
	case err != nil:
		return kernel.CompletionInfo{Completeness: kernel.Complete, Consumed: source}
	case len(stmts) == 0:
		return kernel.CompletionInfo{Completeness: kernel.Empty}
	}

	// A single statement consumes the rest of the text, including trailing
	// comments and blank lines.
	completeness := kernel.CompleteWithSemi
	if stmts[0].Semicolon.IsValid() || strings.Contains(source[stmts[0].End().Offset():], "\n") {
		completeness = kernel.Complete
	}
	return kernel.CompletionInfo{Completeness: completeness, Consumed: source}
}

// Evaluate parses and runs one unit. The fresh outcome comes first, followed
// by cascades for functions the unit overwrote, dropped or made resolvable.
func (e *VirtualEngine) Evaluate(ctx context.Context, source string) ([]kernel.SnippetOutcome, error) {
	switch {
	case e.closed:
		return nil, kernel.ErrEngineClosed
	case e.exited:
		return nil, &ExitRequestError{Code: e.exitCode}
	}

	snippet := e.newSnippet(source)
	file, err := syntax.NewParser().Parse(strings.NewReader(source), "")
	if err != nil {
		e.diagnostics[snippet.ID] = parseDiagnostics(err)
		return []kernel.SnippetOutcome{{Origin: kernel.OriginFresh, Snippet: snippet, Status: kernel.Rejected}}, nil
	}

	snippet.Kind = classify(file.Stmts)
	fresh := kernel.SnippetOutcome{Origin: kernel.OriginFresh, Snippet: snippet, Status: kernel.Valid}

	if missing := e.missingTopLevel(file.Stmts); len(missing) > 0 {
		for _, name := range missing {
			e.addDiagnostic(snippet.ID, name+": command not found")
		}
		fresh.Status = kernel.RecoverableNotDefined
		return []kernel.SnippetOutcome{fresh}, nil
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	before := maps.Clone(e.runner.Funcs)
	var runErr error
	if snippet.Kind == kernel.Expression {
		fresh.Value, runErr = e.evaluateExpression(ctx, file.Stmts[0])
	} else {
		runErr = e.runner.Run(ctx, file)
	}

	if e.runner.Exited() && exitedNormally(runErr) {
		e.exited = true
		e.exitCode = exitCodeOf(runErr)
		e.logger.Debug("session exited", "code", e.exitCode)
		return nil, &ExitRequestError{Code: e.exitCode}
	}

	cascades, unresolved := e.trackFunctions(snippet, before)
	if unresolved {
		fresh.Status = kernel.RecoverableDefined
	}
	fresh.Exception = e.exception(ctx, snippet, runErr)

	return append([]kernel.SnippetOutcome{fresh}, cascades...), nil
}

// Diagnostics returns the messages recorded for snippet.
func (e *VirtualEngine) Diagnostics(snippet kernel.Snippet) []string {
	return e.diagnostics[snippet.ID]
}

// Close releases the session. Further evaluations fail with
// kernel.ErrEngineClosed.
func (e *VirtualEngine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	clear(e.diagnostics)
	clear(e.functions)
	return nil
}

// Exited reports whether user code ran the exit builtin, and with which code.
func (e *VirtualEngine) Exited() (ExitCode, bool) { return e.exitCode, e.exited }

func (e *VirtualEngine) newSnippet(source string) kernel.Snippet {
	e.counter++
	return kernel.Snippet{ID: strconv.Itoa(e.counter), Kind: kernel.Statement, Source: source}
}

func (e *VirtualEngine) addDiagnostic(id, msg string) {
	e.diagnostics[id] = append(e.diagnostics[id], msg)
}

// evaluateExpression runs an arithmetic command or test clause and returns
// its value. A false test or a zero arithmetic result is a value, not a
// failure.
func (e *VirtualEngine) evaluateExpression(ctx context.Context, stmt *syntax.Stmt) (string, error) {
	switch cmd := stmt.Cmd.(type) {
	case *syntax.ArithmCmd:
		assign := &syntax.CallExpr{Assigns: []*syntax.Assign{{
			Name:  &syntax.Lit{Value: valueVar},
			Value: &syntax.Word{Parts: []syntax.WordPart{&syntax.ArithmExp{X: cmd.X}}},
		}}}
		if err := e.runner.Run(ctx, assign); err != nil {
			return "", err
		}
		value := e.lookupVar(valueVar).String()
		unset := &syntax.CallExpr{Args: []*syntax.Word{litWord("unset"), litWord(valueVar)}}
		if err := e.runner.Run(ctx, unset); err != nil {
			return "", err
		}
		return value, nil
	default:
		err := e.runner.Run(ctx, stmt)
		var status interp.ExitStatus
		switch {
		case err == nil:
			return "true", nil
		case errors.As(err, &status) && status == 1:
			return "false", nil
		default:
			return "", err
		}
	}
}

// exception maps the error of a run to an engine exception. A nil result means
// the run succeeded.
func (e *VirtualEngine) exception(ctx context.Context, snippet kernel.Snippet, err error) *kernel.EngineException {
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		typeName := typeInterrupted
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			typeName = typeTimeout
			e.addDiagnostic(snippet.ID, fmt.Sprintf("evaluation did not finish within %s", e.cfg.Timeout))
		}
		return &kernel.EngineException{Kind: kernel.ExceptionRuntime, TypeName: typeName, Message: ctxErr.Error()}
	}

	var unresolved *unresolvedCallError
	if errors.As(err, &unresolved) {
		ex := &kernel.EngineException{Kind: kernel.ExceptionUnresolved, Message: unresolved.Error()}
		if rec, ok := e.functions[unresolved.Function]; ok {
			origin := rec.snippet
			ex.Origin = &origin
		}
		return ex
	}

	var status interp.ExitStatus
	if errors.As(err, &status) {
		if !e.cfg.FailOnNonZeroExit {
			return nil
		}
		return &kernel.EngineException{Kind: kernel.ExceptionRuntime, TypeName: ExitCode(status).TypeName()}
	}

	e.addDiagnostic(snippet.ID, err.Error())
	return &kernel.EngineException{Kind: kernel.ExceptionRuntime, TypeName: typeShellError, Message: err.Error()}
}

// classify decides the snippet kind from the statements of a unit.
func classify(stmts []*syntax.Stmt) kernel.SnippetKind {
	if len(stmts) != 1 {
		return kernel.Statement
	}
	stmt := stmts[0]
	if stmt.Background || stmt.Coprocess || stmt.Negated || len(stmt.Redirs) > 0 {
		return kernel.Statement
	}
	switch cmd := stmt.Cmd.(type) {
	case *syntax.FuncDecl, *syntax.DeclClause:
		return kernel.Declaration
	case *syntax.CallExpr:
		if len(cmd.Args) == 0 && len(cmd.Assigns) > 0 {
			return kernel.Declaration
		}
	case *syntax.ArithmCmd, *syntax.TestClause:
		return kernel.Expression
	}
	return kernel.Statement
}

func parseDiagnostics(err error) []string {
	var perr syntax.ParseError
	if errors.As(err, &perr) {
		return []string{
			perr.Text,
			fmt.Sprintf("location: line %d, column %d", perr.Pos.Line(), perr.Pos.Col()),
		}
	}
	return []string{err.Error()}
}

func hasHeredoc(stmt *syntax.Stmt) bool {
	found := false
	syntax.Walk(stmt, func(node syntax.Node) bool {
		if r, ok := node.(*syntax.Redirect); ok && (r.Op == syntax.Hdoc || r.Op == syntax.DashHdoc) {
			found = true
		}
		return !found
	})
	return found
}

func exitedNormally(err error) bool {
	var status interp.ExitStatus
	return err == nil || errors.As(err, &status)
}

func exitCodeOf(err error) ExitCode {
	var status interp.ExitStatus
	if errors.As(err, &status) {
		return ExitCode(status)
	}
	return 0
}

func litWord(s string) *syntax.Word {
	return &syntax.Word{Parts: []syntax.WordPart{&syntax.Lit{Value: s}}}
}

// validateWorkDir checks that dir exists and is a directory. Empty is allowed.
func validateWorkDir(dir string) error {
	if dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", dir)
		}
		if os.IsPermission(err) {
			return fmt.Errorf("permission denied: %s", dir)
		}
		return fmt.Errorf("cannot access directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}

	return nil
}

// sortedFunctions returns the tracked functions in declaration order.
func (e *VirtualEngine) sortedFunctions() []*functionRecord {
	records := slices.Collect(maps.Values(e.functions))
	slices.SortFunc(records, func(a, b *functionRecord) int { return a.order - b.order })
	return records
}
