// SPDX-License-Identifier: MPL-2.0

package kernel

import (
	"fmt"
	"strings"
)

type (
	// LanguageInfo describes the language a kernel evaluates, in the terms
	// notebook front ends use to pick highlighting and file types.
	LanguageInfo struct {
		Name              string     `json:"name"`
		Version           string     `json:"version"`
		MIMEType          string     `json:"mimetype"`
		FileExtension     string     `json:"file_extension"`
		PygmentsLexer     string     `json:"pygments_lexer,omitempty"`
		CodeMirrorMode    string     `json:"codemirror_mode,omitempty"`
		Implementation    string     `json:"-"`
		ImplementationURL string     `json:"-"`
		HelpLinks         []HelpLink `json:"-"`
	}

	// HelpLink is a titled reference shown in a front end's help menu.
	HelpLink struct {
		Text string `json:"text"`
		URL  string `json:"url"`
	}
)

// Banner returns the greeting printed when a session starts.
func (l LanguageInfo) Banner() string {
	var b strings.Builder
	name := l.Implementation
	if name == "" {
		name = l.Name
	}
	fmt.Fprintf(&b, "%s kernel", name)
	if l.Version != "" {
		fmt.Fprintf(&b, " - %s %s", l.Name, l.Version)
	}
	if l.ImplementationURL != "" {
		fmt.Fprintf(&b, "\n%s", l.ImplementationURL)
	}
	return b.String()
}
