// SPDX-License-Identifier: MPL-2.0

package kernel

// IsIdentifierChar reports whether c can be part of an identifier.
// Only ASCII letters, digits and the underscore qualify.
func IsIdentifierChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	default:
		return c == '_'
	}
}

// IsWhitespace reports whether c is a space, tab, newline or carriage return.
func IsWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
