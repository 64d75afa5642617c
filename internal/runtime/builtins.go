// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"maps"
	"slices"

	"mvdan.cc/sh/v3/syntax"
)

// builtinDoc is the usage line and summary of a shell builtin or keyword.
type builtinDoc struct {
	usage   string
	summary string
}

var builtinDocs = map[string]builtinDoc{
	":":         {": [arg ...]", "Do nothing and succeed."},
	".":         {". file [arg ...]", "Run the commands of file in the current shell."},
	"[":         {"[ expression ]", "Evaluate a conditional expression. Same as test."},
	"alias":     {"alias [name[=value] ...]", "Define or print aliases."},
	"bg":        {"bg [job]", "Resume a job in the background."},
	"break":     {"break [n]", "Exit from a for, while or until loop."},
	"builtin":   {"builtin name [arg ...]", "Run a builtin, bypassing functions with the same name."},
	"cd":        {"cd [dir]", "Change the working directory. Without dir, change to $HOME."},
	"command":   {"command [-v] name [arg ...]", "Run a command, bypassing functions, or describe it with -v."},
	"continue":  {"continue [n]", "Resume the next iteration of a loop."},
	"dirs":      {"dirs", "Print the directory stack."},
	"echo":      {"echo [-neE] [arg ...]", "Write arguments to standard output."},
	"eval":      {"eval [arg ...]", "Join arguments and run them as a command."},
	"exec":      {"exec [command [arg ...]]", "Replace the shell with command."},
	"exit":      {"exit [n]", "Exit the session with status n."},
	"false":     {"false", "Fail with status 1."},
	"fg":        {"fg [job]", "Move a job to the foreground."},
	"getopts":   {"getopts optstring name [arg ...]", "Parse positional parameters as options."},
	"mapfile":   {"mapfile [-t] [array]", "Read lines from standard input into an indexed array."},
	"popd":      {"popd", "Remove the top of the directory stack and change to the new top."},
	"printf":    {"printf format [arg ...]", "Format and print arguments."},
	"pushd":     {"pushd [dir]", "Push dir onto the directory stack and change to it."},
	"pwd":       {"pwd", "Print the working directory."},
	"read":      {"read [-r] [-p prompt] [name ...]", "Read a line from standard input into variables."},
	"readarray": {"readarray [-t] [array]", "Read lines from standard input into an indexed array."},
	"return":    {"return [n]", "Return from a function with status n."},
	"set":       {"set [-eux] [-o option] [arg ...]", "Set shell options and positional parameters."},
	"shift":     {"shift [n]", "Shift positional parameters to the left by n."},
	"shopt":     {"shopt [-su] [optname ...]", "Set and unset shell options."},
	"source":    {"source file [arg ...]", "Run the commands of file in the current shell."},
	"test":      {"test expression", "Evaluate a conditional expression."},
	"trap":      {"trap [action] [signal ...]", "Run action when the shell receives a signal or exits."},
	"true":      {"true", "Succeed with status 0."},
	"type":      {"type name ...", "Describe how each name would be interpreted as a command."},
	"umask":     {"umask [mode]", "Print or set the file creation mask."},
	"unalias":   {"unalias name ...", "Remove aliases."},
	"unset":     {"unset [-fv] name ...", "Remove variables or functions."},
	"wait":      {"wait [pid ...]", "Wait for background jobs to finish."},

	"declare":  {"declare [-aAilrx] [name[=value] ...]", "Declare variables and give them attributes."},
	"export":   {"export [name[=value] ...]", "Mark variables for export to commands."},
	"local":    {"local [name[=value] ...]", "Declare variables local to a function."},
	"readonly": {"readonly [name[=value] ...]", "Mark variables as read-only."},
	"typeset":  {"typeset [-aAilrx] [name[=value] ...]", "Same as declare."},
	"let":      {"let expression ...", "Evaluate arithmetic expressions."},

	"if":       {"if list; then list; [elif list; then list;] [else list;] fi", "Run a list when a condition succeeds."},
	"for":      {"for name [in word ...]; do list; done", "Run a list once for each word."},
	"while":    {"while list; do list; done", "Run a list while a condition succeeds."},
	"until":    {"until list; do list; done", "Run a list until a condition succeeds."},
	"case":     {"case word in [pattern) list;;] ... esac", "Run the list of the first pattern that matches word."},
	"function": {"function name { list; }", "Declare a function."},
	"select":   {"select name [in word ...]; do list; done", "Prompt for a choice among words."},
	"time":     {"time pipeline", "Report the time a pipeline takes."},
	"[[":       {"[[ expression ]]", "Evaluate a conditional expression without word splitting."},
}

// shellKeywords are the reserved words offered by completion.
var shellKeywords = []string{
	"case", "do", "done", "elif", "else", "esac", "fi", "for", "function",
	"if", "in", "select", "then", "time", "until", "while",
}

// builtinNames lists every documented command that is not a keyword. This
// includes declaration commands the parser handles itself.
func builtinNames() []string {
	var names []string
	for _, name := range slices.Sorted(maps.Keys(builtinDocs)) {
		if !syntax.IsKeyword(name) {
			names = append(names, name)
		}
	}
	return names
}
