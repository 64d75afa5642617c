// SPDX-License-Identifier: MPL-2.0

package kernel

import "strings"

// Documentation is the rendered answer to an inspection query.
type Documentation struct {
	PlainText string
	// RichText uses HTML line breaks.
	RichText string
}

// FormatDocumentation concatenates entries into a plain and a rich rendering.
// It returns false when there are no entries.
func FormatDocumentation(entries []DocumentationEntry) (Documentation, bool) {
	if len(entries) == 0 {
		return Documentation{}, false
	}

	plain := make([]string, 0, len(entries))
	rich := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Doc == "" {
			plain = append(plain, e.Signature)
			rich = append(rich, e.Signature)
			continue
		}
		plain = append(plain, e.Signature+"\n"+e.Doc)
		rich = append(rich, e.Signature+"<br/>"+e.Doc)
	}

	return Documentation{
		PlainText: strings.Join(plain, "\n\n"),
		RichText:  strings.Join(rich, "<br/><br/>"),
	}, true
}
