// SPDX-License-Identifier: MPL-2.0

package repl

import (
	"fmt"
	"strings"
	"unicode"
)

const helpText = `Enter shell code to evaluate it. Unfinished commands continue on the next line.

  :help            show this help
  :quit, :exit     end the session
  :inspect CODE    show documentation for the name at the end of CODE
  :complete CODE   list completions for the end of CODE
  ?NAME            short documentation for NAME
  ??NAME           detailed documentation for NAME`

// isMetaCommand reports whether line is addressed to the REPL rather than the
// shell. A colon followed by a letter is a meta command, while ":" alone or
// followed by a space is the shell's null command.
func isMetaCommand(line string) bool {
	line = strings.TrimSpace(line)
	if len(line) < 2 {
		return false
	}
	switch line[0] {
	case ':':
		return unicode.IsLetter(rune(line[1]))
	case '?':
		return true
	}
	return false
}

func (s *Session) runMeta(line string) (done bool, err error) {
	line = strings.TrimSpace(line)

	if rest, ok := strings.CutPrefix(line, "??"); ok {
		s.inspect(strings.TrimSpace(rest), true)
		return false, nil
	}
	if rest, ok := strings.CutPrefix(line, "?"); ok {
		s.inspect(strings.TrimSpace(rest), false)
		return false, nil
	}

	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(name) {
	case "help", "h":
		fmt.Fprintln(s.out, helpText)
	case "quit", "exit", "q":
		return true, nil
	case "inspect", "i":
		s.inspect(arg, true)
	case "complete", "c":
		s.complete(arg)
	default:
		fmt.Fprintf(s.errOut, "%s unknown command :%s, type :help for help\n", s.styles.error.Render("error:"), name)
	}
	return false, nil
}

func (s *Session) inspect(code string, detail bool) {
	if code == "" {
		fmt.Fprintln(s.errOut, "usage: :inspect CODE")
		return
	}
	doc, ok := InspectAt(s.kernel, code, len(code), detail)
	if !ok {
		fmt.Fprintln(s.out, s.styles.muted.Render("no documentation for "+code))
		return
	}
	if s.markdown == nil {
		fmt.Fprintln(s.out, doc.PlainText)
		return
	}
	fmt.Fprintln(s.out, s.renderMarkdown("```sh\n"+doc.PlainText+"\n```"))
}

func (s *Session) complete(code string) {
	opts, ok := s.kernel.Complete(code, len(code))
	if !ok {
		fmt.Fprintln(s.out, s.styles.muted.Render("no completions"))
		return
	}
	for _, o := range opts.Options {
		fmt.Fprintln(s.out, s.styles.option.Render(o))
	}
}
