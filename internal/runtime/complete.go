// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"shkernel/internal/kernel"

	"mvdan.cc/sh/v3/expand"
)

// commandPrefixWords are words after which the next word is a command name.
var commandPrefixWords = []string{"!", "do", "elif", "else", "if", "then", "time", "until", "while", "command", "builtin", "exec"}

// CompletionSuggestions returns candidates for the word that ends at cursor
// and the offset where that word starts.
//
// After '$' the candidates are variables. In command position they are
// functions and builtins, then keywords and executables on PATH. Anywhere
// else, and for words containing a slash, they are file names relative to
// the session's working directory.
func (e *VirtualEngine) CompletionSuggestions(source string, cursor int) ([]kernel.Suggestion, int) {
	if e.closed {
		return nil, cursor
	}
	cursor = max(0, min(cursor, len(source)))
	start := wordStart(source, cursor)
	prefix := source[start:cursor]
	before := source[:start]

	switch {
	case strings.HasSuffix(before, "$"), strings.HasSuffix(before, "${"):
		return e.variableSuggestions(prefix), start
	case strings.ContainsRune(prefix, '/') || !commandPosition(before):
		return e.fileSuggestions(prefix, currentCommand(before)), start
	default:
		return e.commandSuggestions(prefix), start
	}
}

func (e *VirtualEngine) variableSuggestions(prefix string) []kernel.Suggestion {
	names := make(map[string]struct{})
	e.eachVar(func(name string, vr expand.Variable) bool {
		if vr.IsSet() && name != valueVar && strings.HasPrefix(name, prefix) && isName(name) {
			names[name] = struct{}{}
		}
		return true
	})
	// Unset entries may shadow inherited ones.
	for name := range names {
		if !e.lookupVar(name).IsSet() {
			delete(names, name)
		}
	}

	var suggestions []kernel.Suggestion
	for _, name := range slices.Sorted(maps.Keys(names)) {
		suggestions = append(suggestions, kernel.Suggestion{Text: name, IsTypeMatch: true})
	}
	return suggestions
}

func (e *VirtualEngine) commandSuggestions(prefix string) []kernel.Suggestion {
	var suggestions []kernel.Suggestion
	add := func(names []string, typeMatch bool) {
		for _, name := range names {
			if strings.HasPrefix(name, prefix) {
				suggestions = append(suggestions, kernel.Suggestion{Text: name, IsTypeMatch: typeMatch})
			}
		}
	}

	add(slices.Sorted(maps.Keys(e.runner.Funcs)), true)
	add(builtinNames(), true)
	add(shellKeywords, false)
	if prefix != "" {
		add(e.executables(prefix), false)
	}
	return suggestions
}

// executables lists the executable file names on PATH that start with prefix.
func (e *VirtualEngine) executables(prefix string) []string {
	seen := make(map[string]struct{})
	for _, dir := range filepath.SplitList(e.lookupVar("PATH").String()) {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, ent := range entries {
			name := ent.Name()
			if !strings.HasPrefix(name, prefix) || ent.IsDir() {
				continue
			}
			info, err := ent.Info()
			if err != nil || info.Mode()&0o111 == 0 {
				continue
			}
			seen[name] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// fileSuggestions completes prefix as a path. Directories get a trailing
// slash. For cd and pushd only directories are offered; for other commands
// regular files rank first.
func (e *VirtualEngine) fileSuggestions(prefix, command string) []kernel.Suggestion {
	dirPart, base := path.Split(prefix)
	dir := dirPart
	if strings.HasPrefix(dir, "~/") {
		dir = e.lookupVar("HOME").String() + dir[1:]
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(e.runner.Dir, filepath.FromSlash(dir))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	dirsOnly := command == "cd" || command == "pushd"
	var suggestions []kernel.Suggestion
	for _, ent := range entries {
		name := ent.Name()
		if !strings.HasPrefix(name, base) || (strings.HasPrefix(name, ".") && !strings.HasPrefix(base, ".")) {
			continue
		}
		isDir := ent.IsDir()
		if ent.Type()&os.ModeSymlink != 0 {
			if info, err := os.Stat(filepath.Join(dir, name)); err == nil {
				isDir = info.IsDir()
			}
		}
		if dirsOnly && !isDir {
			continue
		}
		text := dirPart + name
		if isDir {
			text += "/"
		}
		suggestions = append(suggestions, kernel.Suggestion{Text: text, IsTypeMatch: dirsOnly || !isDir})
	}
	return suggestions
}

// wordStart returns where the shell word ending at cursor begins.
func wordStart(source string, cursor int) int {
	start := cursor
	for start > 0 && isWordChar(source[start-1]) {
		start--
	}
	return start
}

func isWordChar(c byte) bool {
	return kernel.IsIdentifierChar(c) || strings.IndexByte("-./~+@%,", c) >= 0
}

// commandPosition reports whether a word following before would be run as a
// command.
func commandPosition(before string) bool {
	trimmed := strings.TrimRight(before, " \t")
	if trimmed == "" {
		return true
	}
	if strings.IndexByte(";|&({\n`", trimmed[len(trimmed)-1]) >= 0 {
		return true
	}
	fields := strings.Fields(currentSimpleCommand(trimmed))
	for _, f := range fields {
		if !isAssignment(f) && !slices.Contains(commandPrefixWords, f) {
			return false
		}
	}
	return true
}

// currentCommand returns the command name of the simple command that before
// ends in, skipping leading assignments and keywords.
func currentCommand(before string) string {
	for _, f := range strings.Fields(currentSimpleCommand(before)) {
		if !isAssignment(f) && !slices.Contains(commandPrefixWords, f) {
			return f
		}
	}
	return ""
}

func currentSimpleCommand(before string) string {
	if i := strings.LastIndexAny(before, ";|&({\n`"); i >= 0 {
		return before[i+1:]
	}
	return before
}

func isAssignment(word string) bool {
	name, _, ok := strings.Cut(word, "=")
	return ok && isName(name)
}

// isName reports whether s is a valid shell variable name.
func isName(s string) bool {
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !kernel.IsIdentifierChar(s[i]) {
			return false
		}
	}
	return true
}
