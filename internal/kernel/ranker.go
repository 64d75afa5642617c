// SPDX-License-Identifier: MPL-2.0

package kernel

import (
	"golang.org/x/exp/slices"
)

// ReplacementOptions is the ranked answer to a completion query. The options
// replace the text between ReplaceStart and ReplaceEnd.
type ReplacementOptions struct {
	Options      []string
	ReplaceStart int
	ReplaceEnd   int
}

// RankSuggestions orders type matches before everything else, keeping the
// engine's order within each group, and drops repeated texts. It returns nil
// when there are no suggestions.
func RankSuggestions(suggestions []Suggestion) []string {
	if len(suggestions) == 0 {
		return nil
	}

	ranked := slices.Clone(suggestions)
	slices.SortStableFunc(ranked, func(a, b Suggestion) int {
		switch {
		case a.IsTypeMatch == b.IsTypeMatch:
			return 0
		case a.IsTypeMatch:
			return -1
		default:
			return 1
		}
	})

	seen := make(map[string]struct{}, len(ranked))
	options := make([]string, 0, len(ranked))
	for _, s := range ranked {
		if _, dup := seen[s.Text]; dup {
			continue
		}
		seen[s.Text] = struct{}{}
		options = append(options, s.Text)
	}
	return options
}
