// SPDX-License-Identifier: MPL-2.0

package kernel

import (
	"context"
	"strings"
)

// fakeEngine splits source on ';' and answers evaluations from a script keyed
// by the trimmed unit. Units missing from the script evaluate to a valid
// statement.
type fakeEngine struct {
	script      map[string][]SnippetOutcome
	diagnostics map[string][]string
	docs        []DocumentationEntry
	suggestions []Suggestion
	replace     int

	evaluated  []string
	docCursor  int
	compCursor int
	closed     int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		script:      map[string][]SnippetOutcome{},
		diagnostics: map[string][]string{},
	}
}

func (f *fakeEngine) AnalyzeCompletion(source string) CompletionInfo {
	if strings.TrimSpace(source) == "" {
		return CompletionInfo{Completeness: Empty}
	}
	if i := strings.IndexByte(source, ';'); i >= 0 {
		return CompletionInfo{Completeness: Complete, Consumed: source[:i+1], Remainder: source[i+1:]}
	}
	trimmed := strings.TrimSpace(source)
	if strings.HasSuffix(trimmed, "+") || strings.HasSuffix(trimmed, "{") {
		return CompletionInfo{Completeness: DefinitelyIncomplete, Remainder: trimmed}
	}
	return CompletionInfo{Completeness: CompleteWithSemi, Consumed: source}
}

func (f *fakeEngine) Evaluate(_ context.Context, source string) ([]SnippetOutcome, error) {
	key := strings.TrimSpace(source)
	f.evaluated = append(f.evaluated, key)
	if outcomes, ok := f.script[key]; ok {
		return outcomes, nil
	}
	return []SnippetOutcome{fresh(Statement, key, Valid, "")}, nil
}

func (f *fakeEngine) Diagnostics(s Snippet) []string { return f.diagnostics[s.ID] }

func (f *fakeEngine) Documentation(_ string, cursor int, _ bool) []DocumentationEntry {
	f.docCursor = cursor
	return f.docs
}

func (f *fakeEngine) CompletionSuggestions(_ string, cursor int) ([]Suggestion, int) {
	f.compCursor = cursor
	return f.suggestions, f.replace
}

func (f *fakeEngine) Close() error {
	f.closed++
	return nil
}

func fresh(kind SnippetKind, src string, status Status, value string) SnippetOutcome {
	return SnippetOutcome{
		Origin:  OriginFresh,
		Snippet: Snippet{ID: src, Kind: kind, Source: src},
		Status:  status,
		Value:   value,
	}
}

func cascade(kind SnippetKind, src string, status Status, cause string) SnippetOutcome {
	return SnippetOutcome{
		Origin:  OriginCascade,
		Snippet: Snippet{ID: src, Kind: kind, Source: src},
		Cause:   &Snippet{ID: cause, Source: cause},
		Status:  status,
	}
}
