// SPDX-License-Identifier: MPL-2.0

// Package issue turns kernel and startup failures into guidance for the user:
// ActionableError carries context and suggestions, and the catalog holds
// Markdown explanations rendered with glamour.
package issue
