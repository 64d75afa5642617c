// SPDX-License-Identifier: MPL-2.0

package kernel

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func newTestKernel(engine Engine) (*Kernel, *bytes.Buffer) {
	var stderr bytes.Buffer
	k := New(engine, WithStderr(&stderr), WithLogger(log.New(io.Discard)))
	return k, &stderr
}

func TestEvaluateValues(t *testing.T) {
	t.Parallel()

	scripted := func() *fakeEngine {
		engine := newFakeEngine()
		engine.script["int x = 1;"] = []SnippetOutcome{fresh(Declaration, "int x = 1;", Valid, "1")}
		engine.script["x + 1"] = []SnippetOutcome{fresh(Expression, "x + 1", Valid, "2")}
		engine.script["x;"] = []SnippetOutcome{fresh(Expression, "x;", Valid, "1")}
		engine.script["\"\";"] = []SnippetOutcome{fresh(Expression, "\"\";", Valid, "")}
		return engine
	}

	tests := []struct {
		name       string
		submission string
		wantValue  string
		wantOK     bool
	}{
		{name: "empty submission", submission: "", wantOK: false},
		{name: "whitespace submission", submission: "  \n ", wantOK: false},
		{name: "final expression wins", submission: "int x = 1; x + 1", wantValue: "2", wantOK: true},
		{name: "declaration has no value", submission: "int x = 1;", wantOK: false},
		{name: "later statement clears value", submission: "x; int x = 1;", wantOK: false},
		{name: "later expression replaces value", submission: "x; x + 1", wantValue: "2", wantOK: true},
		{name: "empty expression value", submission: "\"\";", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			k, _ := newTestKernel(scripted())
			value, ok, err := k.Evaluate(context.Background(), tt.submission)
			if err != nil {
				t.Fatalf("Evaluate(%q) error: %v", tt.submission, err)
			}
			if ok != tt.wantOK || value != tt.wantValue {
				t.Errorf("Evaluate(%q) = (%q, %v), want (%q, %v)", tt.submission, value, ok, tt.wantValue, tt.wantOK)
			}
		})
	}
}

func TestEvaluateConsumesEveryUnit(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	k, _ := newTestKernel(engine)

	if _, _, err := k.Evaluate(context.Background(), "a;\n b;  c;\n\n"); err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if want := []string{"a;", "b;", "c;"}; !slices.Equal(engine.evaluated, want) {
		t.Errorf("evaluated %q, want %q", engine.evaluated, want)
	}
}

func TestEvaluateIncompleteSource(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	k, _ := newTestKernel(engine)

	_, _, err := k.Evaluate(context.Background(), "a; 1 +")
	var incomplete *IncompleteSourceError
	if !errors.As(err, &incomplete) {
		t.Fatalf("Evaluate() error = %v, want IncompleteSourceError", err)
	}
	if incomplete.Remainder != "1 +" {
		t.Errorf("Remainder = %q, want %q", incomplete.Remainder, "1 +")
	}
	if !errors.Is(err, ErrIncompleteSource) {
		t.Error("error does not wrap ErrIncompleteSource")
	}
	// Units before the fragment still ran.
	if !slices.Equal(engine.evaluated, []string{"a;"}) {
		t.Errorf("evaluated %q, want [a;]", engine.evaluated)
	}
}

func TestEvaluateOnlyIncomplete(t *testing.T) {
	t.Parallel()

	k, _ := newTestKernel(newFakeEngine())
	_, _, err := k.Evaluate(context.Background(), "1 +")

	var incomplete *IncompleteSourceError
	if !errors.As(err, &incomplete) || incomplete.Remainder != "1 +" {
		t.Fatalf("Evaluate() error = %v, want IncompleteSourceError with remainder %q", err, "1 +")
	}
}

func TestEvaluateRuntimeException(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	failing := fresh(Statement, "f();", Valid, "")
	failing.Exception = &EngineException{Kind: ExceptionRuntime, TypeName: "java.lang.RuntimeException", Message: "boom"}
	engine.script["f();"] = []SnippetOutcome{failing}
	engine.diagnostics["f();"] = []string{"thrown here\n  location: line 1", "second"}

	k, stderr := newTestKernel(engine)
	_, _, err := k.Evaluate(context.Background(), "f(); after;")

	var rex *RuntimeExceptionError
	if !errors.As(err, &rex) {
		t.Fatalf("Evaluate() error = %v, want RuntimeExceptionError", err)
	}
	if rex.TypeName != "java.lang.RuntimeException" {
		t.Errorf("TypeName = %q", rex.TypeName)
	}
	want := "java.lang.RuntimeException\nthrown here\nsecond\n"
	if stderr.String() != want {
		t.Errorf("stderr = %q, want %q", stderr.String(), want)
	}
	if slices.Contains(engine.evaluated, "after;") {
		t.Error("evaluation continued after a failing unit")
	}
}

func TestEvaluateUnresolvedReference(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	origin := Snippet{ID: "def", Kind: Declaration, Source: "void g() { h(); }"}
	call := fresh(Statement, "g();", Valid, "")
	call.Exception = &EngineException{Kind: ExceptionUnresolved, Origin: &origin}
	engine.script["g();"] = []SnippetOutcome{call}
	engine.diagnostics["def"] = []string{"cannot find symbol h()", "location: class Main"}
	engine.diagnostics["g();"] = []string{"should not be printed"}

	k, stderr := newTestKernel(engine)
	_, _, err := k.Evaluate(context.Background(), "g();")

	var unresolved *UnresolvedReferenceError
	if !errors.As(err, &unresolved) {
		t.Fatalf("Evaluate() error = %v, want UnresolvedReferenceError", err)
	}
	if unresolved.Origin.ID != "def" {
		t.Errorf("Origin = %+v, want the declaring snippet", unresolved.Origin)
	}
	if stderr.String() != "cannot find symbol h()\n" {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestEvaluateCompileError(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.script["int y = ;"] = []SnippetOutcome{fresh(Declaration, " int y = ; ", Rejected, "")}
	engine.diagnostics[" int y = ; "] = []string{"illegal start of expression"}

	k, stderr := newTestKernel(engine)
	_, _, err := k.Evaluate(context.Background(), "int y = ;")

	var cerr *CompileError
	if !errors.As(err, &cerr) {
		t.Fatalf("Evaluate() error = %v, want CompileError", err)
	}
	if cerr.Source != "int y = ;" {
		t.Errorf("Source = %q, want trimmed source", cerr.Source)
	}
	if err.Error() != "cannot compile 'int y = ;'" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !strings.Contains(stderr.String(), "illegal start of expression") {
		t.Errorf("stderr = %q, want diagnostics", stderr.String())
	}
}

func TestEvaluateCascades(t *testing.T) {
	t.Parallel()

	t.Run("cascade value is ignored", func(t *testing.T) {
		t.Parallel()

		engine := newFakeEngine()
		dependent := cascade(Expression, "h()", Valid, "int k = 2;")
		dependent.Value = "99"
		engine.script["int k = 2;"] = []SnippetOutcome{
			fresh(Declaration, "int k = 2;", Valid, "2"),
			dependent,
			cascade(Declaration, "int k = 1;", Overwritten, "int k = 2;"),
		}

		k, _ := newTestKernel(engine)
		value, ok, err := k.Evaluate(context.Background(), "int k = 2;")
		if err != nil || ok || value != "" {
			t.Errorf("Evaluate() = (%q, %v, %v), want no value", value, ok, err)
		}
	})

	t.Run("failing cascade fails the submission", func(t *testing.T) {
		t.Parallel()

		engine := newFakeEngine()
		engine.script["int k = 2;"] = []SnippetOutcome{
			fresh(Declaration, "int k = 2;", Valid, ""),
			cascade(Declaration, "String s = k;", Rejected, "int k = 2;"),
		}

		k, _ := newTestKernel(engine)
		_, _, err := k.Evaluate(context.Background(), "int k = 2;")
		var cerr *CompileError
		if !errors.As(err, &cerr) || cerr.Source != "String s = k;" {
			t.Errorf("Evaluate() error = %v, want CompileError for the cascade", err)
		}
	})

	t.Run("cascade exception fails the submission", func(t *testing.T) {
		t.Parallel()

		engine := newFakeEngine()
		boom := cascade(Statement, "run();", Valid, "x;")
		boom.Exception = &EngineException{Kind: ExceptionRuntime, TypeName: "exit status 2"}
		engine.script["x;"] = []SnippetOutcome{fresh(Expression, "x;", Valid, "1"), boom}

		k, _ := newTestKernel(engine)
		_, _, err := k.Evaluate(context.Background(), "x;")
		if !errors.Is(err, ErrRuntimeException) {
			t.Errorf("Evaluate() error = %v, want ErrRuntimeException", err)
		}
	})
}

func TestEvaluateEngineError(t *testing.T) {
	t.Parallel()

	engine := &erroringEngine{fakeEngine: newFakeEngine(), err: ErrEngineClosed}
	k, _ := newTestKernel(engine)
	if _, _, err := k.Evaluate(context.Background(), "a;"); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("Evaluate() error = %v, want ErrEngineClosed", err)
	}
}

type erroringEngine struct {
	*fakeEngine
	err error
}

func (e *erroringEngine) Evaluate(context.Context, string) ([]SnippetOutcome, error) {
	return nil, e.err
}

func TestComplete(t *testing.T) {
	t.Parallel()

	t.Run("ranked options and replacement range", func(t *testing.T) {
		t.Parallel()

		engine := newFakeEngine()
		engine.suggestions = []Suggestion{{Text: "out"}, {Text: "err", IsTypeMatch: true}, {Text: "out"}}
		engine.replace = 7

		k, _ := newTestKernel(engine)
		got, ok := k.Complete("System.ou", 7)
		if !ok {
			t.Fatal("Complete() ok = false")
		}
		if !slices.Equal(got.Options, []string{"err", "out"}) {
			t.Errorf("Options = %v", got.Options)
		}
		if got.ReplaceStart != 7 || got.ReplaceEnd != 9 {
			t.Errorf("range = [%d, %d), want [7, 9)", got.ReplaceStart, got.ReplaceEnd)
		}
		if engine.compCursor != 9 {
			t.Errorf("engine cursor = %d, want 9", engine.compCursor)
		}
	})

	t.Run("no suggestions", func(t *testing.T) {
		t.Parallel()

		k, _ := newTestKernel(newFakeEngine())
		if _, ok := k.Complete("zz", 1); ok {
			t.Error("Complete() ok = true, want no completions")
		}
	})
}

func TestInspect(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.docs = []DocumentationEntry{{Signature: "foo(int)", Doc: "Does foo."}}

	k, _ := newTestKernel(engine)
	doc, ok := k.Inspect("foo (1)", 1, false)
	if !ok {
		t.Fatal("Inspect() ok = false")
	}
	if doc.PlainText != "foo(int)\nDoes foo." {
		t.Errorf("PlainText = %q", doc.PlainText)
	}
	// The cursor is moved onto the paren and passed one past it.
	if engine.docCursor != 5 {
		t.Errorf("engine cursor = %d, want 5", engine.docCursor)
	}

	engine.docs = nil
	if _, ok := k.Inspect("foo", 0, true); ok {
		t.Error("Inspect() ok = true, want no documentation")
	}
}

func TestIsComplete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		want IsCompleteStatus
	}{
		{"", IsCompleteComplete},
		{"a;", IsCompleteComplete},
		{"a; b", IsCompleteComplete},
		{"a; 1 +", IsCompleteIncomplete},
		{"void f() {", IsCompleteIncomplete},
	}

	k, _ := newTestKernel(newFakeEngine())
	for _, tt := range tests {
		if got := k.IsComplete(tt.code); got != tt.want {
			t.Errorf("IsComplete(%q) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestShutdown(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	k, _ := newTestKernel(engine)

	if err := k.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if err := k.Shutdown(); err != nil {
		t.Fatalf("second Shutdown() error: %v", err)
	}
	if engine.closed != 1 {
		t.Errorf("engine closed %d times, want 1", engine.closed)
	}
	if _, _, err := k.Evaluate(context.Background(), "a;"); !errors.Is(err, ErrKernelShutdown) {
		t.Errorf("Evaluate() after Shutdown error = %v", err)
	}
}

func TestBanner(t *testing.T) {
	t.Parallel()

	info := LanguageInfo{Name: "bash", Version: "5.2", Implementation: "shkernel"}
	if got := info.Banner(); got != "shkernel kernel - bash 5.2" {
		t.Errorf("Banner() = %q", got)
	}
}
