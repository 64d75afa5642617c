// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"

	"shkernel/internal/kernel"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Id identifies a class of failure in the issue catalog.
type Id int

const (
	IncompleteSourceId Id = iota + 1
	CompileErrorId
	RuntimeFailureId
	UnresolvedReferenceId
	ConfigLoadFailedId
	ServerStartFailedId
	KernelShutdownId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	title    string      // short name shown in listings
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // must never be empty, because we need to have docs about all issue types
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) Title() string {
	return i.title
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Markdown returns the message followed by a "See also" list of its links.
func (i *Issue) Markdown() string {
	var sb strings.Builder
	sb.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		sb.WriteString("\n\n## See also\n")
		for _, link := range append(i.DocLinks(), i.extLinks...) {
			sb.WriteString("- <" + string(link) + ">\n")
		}
	}
	return sb.String()
}

// Render renders the issue for a terminal. stylePath is a glamour style name
// such as "auto", "dark" or "light", or a path to a style file.
func (i *Issue) Render(stylePath string) (string, error) {
	return render(i.Markdown(), stylePath)
}

// ForError returns the catalog entry explaining err, or nil when none does.
func ForError(err error) *Issue {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, kernel.ErrIncompleteSource):
		return Get(IncompleteSourceId)
	case errors.Is(err, kernel.ErrCompile):
		return Get(CompileErrorId)
	case errors.Is(err, kernel.ErrUnresolvedReference):
		return Get(UnresolvedReferenceId)
	case errors.Is(err, kernel.ErrRuntimeException):
		return Get(RuntimeFailureId)
	case errors.Is(err, kernel.ErrKernelShutdown), errors.Is(err, kernel.ErrEngineClosed), errors.Is(err, kernel.ErrEngineExited):
		return Get(KernelShutdownId)
	}
	return nil
}

const bashManual HttpLink = "https://www.gnu.org/software/bash/manual/bash.html"

var (
	render = glamour.Render

	incompleteSourceIssue = &Issue{
		id:    IncompleteSourceId,
		title: "incomplete source",
		mdMsg: `
# The input ended in the middle of a command

Everything before the unfinished command ran. The rest was never evaluated.

## Things you can try
- Close the open construct: ` + "`fi`" + `, ` + "`done`" + `, ` + "`esac`" + `, ` + "`}`" + ` or a quote
- Finish a heredoc with its delimiter on a line of its own
- Remove a trailing ` + "`|`" + `, ` + "`&&`" + ` or ` + "`\\`",
		docLinks: []HttpLink{bashManual + "#Compound-Commands"},
	}

	compileErrorIssue = &Issue{
		id:    CompileErrorId,
		title: "compile error",
		mdMsg: `
# A command could not be run

The shell rejected it before running it. Either it is not valid syntax, or it
names a command that is not a builtin, a declared function or an executable
on ` + "`PATH`" + `.

## Things you can try
- Check the location printed with the error
- Declare the missing function first, or fix ` + "`PATH`" + `
- Use ` + "`:inspect name`" + ` to see what a name resolves to`,
		docLinks: []HttpLink{bashManual + "#Shell-Syntax"},
	}

	runtimeFailureIssue = &Issue{
		id:    RuntimeFailureId,
		title: "runtime failure",
		mdMsg: `
# A command failed while running

A statement exited with a non-zero status, timed out, or was interrupted.
Statements after it in the same submission were not run.

## Things you can try
- Read the ` + "`exit status N`" + ` line and the command's own error output
- Append ` + "`|| true`" + ` to commands that are allowed to fail
- Set ` + "`engine.fail_on_nonzero_exit: false`" + ` to only report failures
- Raise ` + "`engine.timeout`" + ` for long-running commands`,
		docLinks: []HttpLink{bashManual + "#Exit-Status"},
	}

	unresolvedReferenceIssue = &Issue{
		id:    UnresolvedReferenceId,
		title: "unresolved reference",
		mdMsg: `
# A function called a command that does not exist yet

The function was accepted when it was declared even though its body uses a
command that was not defined. Calling it fails until that command exists.

## Things you can try
- Declare the missing function, then call this one again
- Use ` + "`:inspect function_name`" + ` to list the undefined commands`,
		docLinks: []HttpLink{bashManual + "#Shell-Functions"},
	}

	configLoadFailedIssue = &Issue{
		id:    ConfigLoadFailedId,
		title: "configuration error",
		mdMsg: `
# The configuration could not be loaded

## Things you can try
- Check the file against the schema:
~~~
$ shkernel config validate
~~~
- Print the effective configuration:
~~~
$ shkernel config show
~~~
- Unset ` + "`SHKERNEL_*`" + ` environment variables that override the file`,
		extLinks: []HttpLink{"https://cuelang.org/docs/tour/"},
	}

	serverStartFailedIssue = &Issue{
		id:    ServerStartFailedId,
		title: "server start failure",
		mdMsg: `
# A server could not be started

## Things you can try
- Pick another port with ` + "`ssh.port`" + ` or ` + "`websocket.port`" + `, or 0 for any free port
- Make sure the host key path is writable
- Check that no other shkernel instance is serving on the same address`,
	}

	kernelShutdownIssue = &Issue{
		id:    KernelShutdownId,
		title: "kernel shut down",
		mdMsg: `
# The session has ended

The shell exited or the kernel was shut down. Start a new session to continue.`,
	}

	issues = map[Id]*Issue{
		incompleteSourceIssue.Id():    incompleteSourceIssue,
		compileErrorIssue.Id():        compileErrorIssue,
		runtimeFailureIssue.Id():      runtimeFailureIssue,
		unresolvedReferenceIssue.Id(): unresolvedReferenceIssue,
		configLoadFailedIssue.Id():    configLoadFailedIssue,
		serverStartFailedIssue.Id():   serverStartFailedIssue,
		kernelShutdownIssue.Id():      kernelShutdownIssue,
	}
)

// Values returns every issue ordered by Id.
func Values() []*Issue {
	values := maps.Values(issues)
	slices.SortFunc(values, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return values
}

func Get(id Id) *Issue {
	return issues[id]
}
