// SPDX-License-Identifier: MPL-2.0

package kernel

// ResolveForCompletion extends offset to the last character of the identifier
// it sits in or immediately before. Offsets are byte indexes into text and are
// clamped to the last valid index, so an offset at len(text) behaves like one on
// the final character.
func ResolveForCompletion(text string, offset int) int {
	at := clampOffset(text, offset)
	for at+1 < len(text) && IsIdentifierChar(text[at+1]) {
		at++
	}
	return at
}

// ResolveForInspection behaves like ResolveForCompletion and then moves onto an
// opening parenthesis that follows the identifier after optional whitespace, so
// that "foo ()" resolves to the call form.
func ResolveForInspection(text string, offset int) int {
	at := ResolveForCompletion(text, offset)

	next := at + 1
	for next < len(text) && IsWhitespace(text[next]) {
		next++
	}
	if next < len(text) && text[next] == '(' {
		return next
	}
	return at
}

func clampOffset(text string, offset int) int {
	if offset < 0 || len(text) == 0 {
		return 0
	}
	if offset >= len(text) {
		return len(text) - 1
	}
	return offset
}
