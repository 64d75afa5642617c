// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"shkernel/internal/kernel"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// sessionEnviron exposes the current variables of the session, including the
// ones set by earlier evaluations.
type sessionEnviron struct {
	e *VirtualEngine
}

func (s sessionEnviron) Get(name string) expand.Variable { return s.e.lookupVar(name) }

func (s sessionEnviron) Each(fn func(name string, vr expand.Variable) bool) {
	s.e.eachVar(fn)
}

// lookupVar returns the current value of a variable. The runner only copies
// its variables to Vars after a run, so the initial environment is the
// fallback.
func (e *VirtualEngine) lookupVar(name string) expand.Variable {
	if vr, ok := e.runner.Vars[name]; ok {
		return vr
	}
	return e.runner.Env.Get(name)
}

func (e *VirtualEngine) eachVar(fn func(name string, vr expand.Variable) bool) {
	seen := make(map[string]struct{}, len(e.runner.Vars))
	for _, name := range slices.Sorted(maps.Keys(e.runner.Vars)) {
		seen[name] = struct{}{}
		if !fn(name, e.runner.Vars[name]) {
			return
		}
	}
	e.runner.Env.Each(func(name string, vr expand.Variable) bool {
		if _, ok := seen[name]; ok {
			return true
		}
		return fn(name, vr)
	})
}

// lookPath finds an executable on the session's PATH.
func (e *VirtualEngine) lookPath(name string) (string, error) {
	return interp.LookPathDir(e.runner.Dir, sessionEnviron{e}, name)
}

// resolvable reports whether name can be run as a command right now.
func (e *VirtualEngine) resolvable(name string) bool {
	if interp.IsBuiltin(name) || strings.ContainsRune(name, '/') {
		return true
	}
	if _, ok := e.runner.Funcs[name]; ok {
		return true
	}
	_, err := e.lookPath(name)
	return err == nil
}

// missingTopLevel returns the literal command names of stmts that cannot be
// resolved. Only the command a statement runs directly is checked; commands
// nested in compound statements may never run. Functions declared by earlier
// statements of the same unit count as resolved.
func (e *VirtualEngine) missingTopLevel(stmts []*syntax.Stmt) []string {
	var missing, declared []string
	for _, stmt := range stmts {
		switch cmd := stmt.Cmd.(type) {
		case *syntax.FuncDecl:
			declared = append(declared, cmd.Name.Value)
		case *syntax.CallExpr:
			if len(cmd.Args) == 0 || len(cmd.Assigns) > 0 {
				continue
			}
			name := cmd.Args[0].Lit()
			if name == "" || slices.Contains(declared, name) || e.resolvable(name) {
				continue
			}
			missing = append(missing, name)
		}
	}
	return missing
}

// missingInBody returns the distinct literal command names in a function body
// that cannot be resolved.
func (e *VirtualEngine) missingInBody(self string, body *syntax.Stmt) []string {
	var missing []string
	syntax.Walk(body, func(node syntax.Node) bool {
		call, ok := node.(*syntax.CallExpr)
		if !ok || len(call.Args) == 0 {
			return true
		}
		name := call.Args[0].Lit()
		if name == "" || name == self || slices.Contains(missing, name) || e.resolvable(name) {
			return true
		}
		missing = append(missing, name)
		return true
	})
	return missing
}

// trackFunctions compares the declared functions with the set before the
// last run. New and replaced functions are attributed to snippet. It returns
// cascade outcomes for snippets affected by the change and whether a function
// declared by snippet references undefined commands.
func (e *VirtualEngine) trackFunctions(snippet kernel.Snippet, before map[string]*syntax.Stmt) ([]kernel.SnippetOutcome, bool) {
	var cascades []kernel.SnippetOutcome
	unresolved := false

	for _, name := range slices.Sorted(maps.Keys(e.runner.Funcs)) {
		body := e.runner.Funcs[name]
		if prev, ok := before[name]; ok && prev == body {
			continue
		}

		if old, ok := e.functions[name]; ok && old.snippet.ID != snippet.ID {
			cascades = append(cascades, cascadeOutcome(old.snippet, snippet, kernel.Overwritten))
		}

		rec := &functionRecord{name: name, snippet: snippet, order: e.counter}
		rec.unresolved = e.missingInBody(name, body)
		e.functions[name] = rec
		if len(rec.unresolved) > 0 {
			unresolved = true
			e.addDiagnostic(snippet.ID, fmt.Sprintf("function %s references undefined command %s",
				name, strings.Join(rec.unresolved, ", ")))
		}

		cascades = append(cascades, e.resolveDependents(name, snippet)...)
	}

	for _, name := range slices.Sorted(maps.Keys(before)) {
		if _, ok := e.runner.Funcs[name]; ok {
			continue
		}
		if rec, ok := e.functions[name]; ok {
			delete(e.functions, name)
			cascades = append(cascades, cascadeOutcome(rec.snippet, snippet, kernel.Dropped))
		}
	}

	return cascades, unresolved
}

// resolveDependents clears name from the unresolved references of other
// functions and reports each of them as redefined.
func (e *VirtualEngine) resolveDependents(name string, cause kernel.Snippet) []kernel.SnippetOutcome {
	var cascades []kernel.SnippetOutcome
	for _, dep := range e.sortedFunctions() {
		i := slices.Index(dep.unresolved, name)
		if i < 0 || dep.name == name {
			continue
		}
		dep.unresolved = slices.Delete(dep.unresolved, i, i+1)
		status := kernel.Valid
		if len(dep.unresolved) > 0 {
			status = kernel.RecoverableDefined
		}
		cascades = append(cascades, cascadeOutcome(dep.snippet, cause, status))
	}
	return cascades
}

// unresolvedOwner returns the most recently declared function that references
// name while it is unresolved.
func (e *VirtualEngine) unresolvedOwner(name string) (*functionRecord, bool) {
	records := e.sortedFunctions()
	for _, rec := range slices.Backward(records) {
		if slices.Contains(rec.unresolved, name) {
			return rec, true
		}
	}
	return nil, false
}

// execHandler stops a run when it reaches a command that a function was
// declared with and that still cannot be found.
func (e *VirtualEngine) execHandler(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if owner, ok := e.unresolvedOwner(args[0]); ok {
			hc := interp.HandlerCtx(ctx)
			if _, err := interp.LookPathDir(hc.Dir, hc.Env, args[0]); err != nil {
				e.logger.Debug("unresolved call", "command", args[0], "function", owner.name)
				return &unresolvedCallError{Name: args[0], Function: owner.name}
			}
		}
		return next(ctx, args)
	}
}

func cascadeOutcome(target, cause kernel.Snippet, status kernel.Status) kernel.SnippetOutcome {
	return kernel.SnippetOutcome{
		Origin:  kernel.OriginCascade,
		Snippet: target,
		Cause:   &cause,
		Status:  status,
	}
}
