// SPDX-License-Identifier: MPL-2.0

package kernel

import (
	"fmt"
	"io"
	"strings"
)

// locationLabel prefixes engine position lines that are noise in an
// interactive session. This matches on message text and stops filtering if the
// engine changes its diagnostic format.
const locationLabel = "location:"

// FilterDiagnostics splits every message on newlines and drops location lines.
func FilterDiagnostics(messages []string) []string {
	var lines []string
	for _, msg := range messages {
		for line := range strings.SplitSeq(msg, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), locationLabel) {
				continue
			}
			lines = append(lines, line)
		}
	}
	return lines
}

// WriteDiagnostics writes the filtered diagnostics of snippet to w.
func WriteDiagnostics(w io.Writer, engine Engine, snippet Snippet) {
	for _, line := range FilterDiagnostics(engine.Diagnostics(snippet)) {
		fmt.Fprintln(w, line)
	}
}
