// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"fmt"
	"strings"

	"shkernel/internal/kernel"

	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Documentation describes the word that ends at cursor. A cursor right after
// an opening parenthesis asks for the function of that name only. A word
// after '$' is looked up as a variable. Otherwise every meaning of the word
// is reported: function, builtin or keyword, variable and executable.
func (e *VirtualEngine) Documentation(source string, cursor int, detail bool) []kernel.DocumentationEntry {
	if e.closed {
		return nil
	}
	end := max(0, min(cursor, len(source)))

	callForm := false
	if end > 0 && source[end-1] == '(' {
		callForm = true
		end--
		for end > 0 && kernel.IsWhitespace(source[end-1]) {
			end--
		}
	}

	start := wordStart(source, end)
	name := source[start:end]
	if name == "" {
		return nil
	}

	if before := source[:start]; strings.HasSuffix(before, "$") || strings.HasSuffix(before, "${") {
		if entry, ok := e.variableDoc(name, detail); ok {
			return []kernel.DocumentationEntry{entry}
		}
		return nil
	}

	var entries []kernel.DocumentationEntry
	if entry, ok := e.functionDoc(name, detail); ok {
		entries = append(entries, entry)
	}
	if callForm {
		return entries
	}
	if doc, ok := builtinDocs[name]; ok {
		entries = append(entries, builtinEntry(name, doc, detail))
	}
	if entry, ok := e.variableDoc(name, detail); ok {
		entries = append(entries, entry)
	}
	if path, err := e.lookPath(name); err == nil {
		entries = append(entries, kernel.DocumentationEntry{Signature: name, Doc: path})
	}
	return entries
}

func (e *VirtualEngine) functionDoc(name string, detail bool) (kernel.DocumentationEntry, bool) {
	body, ok := e.runner.Funcs[name]
	if !ok {
		return kernel.DocumentationEntry{}, false
	}

	var doc strings.Builder
	doc.WriteString("Shell function")
	if rec, ok := e.functions[name]; ok {
		fmt.Fprintf(&doc, " declared by input %s.", rec.snippet.ID)
		if len(rec.unresolved) > 0 {
			fmt.Fprintf(&doc, " Undefined commands: %s.", strings.Join(rec.unresolved, ", "))
		}
	} else {
		doc.WriteString(".")
	}

	if detail {
		var src strings.Builder
		if err := syntax.NewPrinter().Print(&src, body); err == nil {
			fmt.Fprintf(&doc, "\n%s() %s", name, strings.TrimRight(src.String(), "\n"))
		}
	}
	return kernel.DocumentationEntry{Signature: name + "()", Doc: doc.String()}, true
}

func (e *VirtualEngine) variableDoc(name string, detail bool) (kernel.DocumentationEntry, bool) {
	if name == valueVar || !isName(name) {
		return kernel.DocumentationEntry{}, false
	}
	vr := e.lookupVar(name)
	if !vr.IsSet() {
		return kernel.DocumentationEntry{}, false
	}

	doc := vr.String()
	if detail {
		var attrs []string
		if vr.Exported {
			attrs = append(attrs, "exported")
		}
		if vr.ReadOnly {
			attrs = append(attrs, "read-only")
		}
		if vr.Local {
			attrs = append(attrs, "local")
		}
		if len(attrs) > 0 {
			doc += "\n(" + strings.Join(attrs, ", ") + ")"
		}
	}
	return kernel.DocumentationEntry{Signature: "$" + name, Doc: doc}, true
}

func builtinEntry(name string, doc builtinDoc, detail bool) kernel.DocumentationEntry {
	text := doc.summary
	if detail {
		switch {
		case syntax.IsKeyword(name):
			text += "\nShell keyword."
		case interp.IsBuiltin(name):
			text += "\nShell builtin."
		default:
			text += "\nShell declaration command."
		}
	}
	return kernel.DocumentationEntry{Signature: doc.usage, Doc: text}
}
