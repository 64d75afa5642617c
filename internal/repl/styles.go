// SPDX-License-Identifier: MPL-2.0

package repl

import "github.com/charmbracelet/lipgloss"

const (
	colorPrimary   = lipgloss.Color("#7C3AED")
	colorMuted     = lipgloss.Color("#6B7280")
	colorError     = lipgloss.Color("#EF4444")
	colorHighlight = lipgloss.Color("#3B82F6")
)

type styles struct {
	ready  bool
	banner lipgloss.Style
	muted  lipgloss.Style
	error  lipgloss.Style
	value  lipgloss.Style
	option lipgloss.Style
}

// newStyles binds the palette to r so color support follows the output the
// session writes to.
func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		ready:  true,
		banner: r.NewStyle().Bold(true).Foreground(colorPrimary),
		muted:  r.NewStyle().Foreground(colorMuted),
		error:  r.NewStyle().Bold(true).Foreground(colorError),
		value:  r.NewStyle(),
		option: r.NewStyle().Foreground(colorHighlight),
	}
}

func (s styles) isZero() bool { return !s.ready }
