// SPDX-License-Identifier: MPL-2.0

package kernel

import (
	"slices"
	"testing"
)

func TestRankSuggestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		suggestions []Suggestion
		want        []string
	}{
		{
			name:        "no suggestions",
			suggestions: nil,
			want:        nil,
		},
		{
			name: "type matches first, order kept within groups",
			suggestions: []Suggestion{
				{Text: "c", IsTypeMatch: false},
				{Text: "a", IsTypeMatch: true},
				{Text: "d", IsTypeMatch: false},
				{Text: "b", IsTypeMatch: true},
			},
			want: []string{"a", "b", "c", "d"},
		},
		{
			name: "duplicates keep first occurrence after sorting",
			suggestions: []Suggestion{
				{Text: "echo", IsTypeMatch: false},
				{Text: "exit", IsTypeMatch: true},
				{Text: "echo", IsTypeMatch: true},
				{Text: "exit", IsTypeMatch: false},
			},
			want: []string{"exit", "echo"},
		},
		{
			name: "ties are not reordered",
			suggestions: []Suggestion{
				{Text: "zeta"},
				{Text: "alpha"},
				{Text: "mid"},
			},
			want: []string{"zeta", "alpha", "mid"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := RankSuggestions(tt.suggestions)
			if !slices.Equal(got, tt.want) {
				t.Errorf("RankSuggestions() = %v, want %v", got, tt.want)
			}
			if tt.want == nil && got != nil {
				t.Errorf("RankSuggestions() = %#v, want nil", got)
			}
		})
	}
}

func TestRankSuggestionsIsIdempotent(t *testing.T) {
	t.Parallel()

	suggestions := []Suggestion{
		{Text: "b"}, {Text: "a", IsTypeMatch: true}, {Text: "b", IsTypeMatch: true}, {Text: "c"},
	}
	first := RankSuggestions(suggestions)

	again := make([]Suggestion, 0, len(first))
	for _, text := range first {
		again = append(again, Suggestion{Text: text})
	}
	if second := RankSuggestions(again); !slices.Equal(first, second) {
		t.Errorf("re-ranking changed order: %v then %v", first, second)
	}
	if suggestions[0].Text != "b" || suggestions[1].Text != "a" {
		t.Error("RankSuggestions modified its input")
	}
}
