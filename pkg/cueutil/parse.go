// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

type (
	// Schema is a compiled CUE definition that documents are checked
	// against. A Schema may check several documents, one at a time.
	Schema struct {
		ctx        *cue.Context
		definition cue.Value
	}

	// ParseResult contains the result of a successful CUE parse operation.
	ParseResult[T any] struct {
		// Value is the decoded Go struct.
		Value *T

		// Unified is the schema unified with the user data, for callers that
		// need to look up values the struct does not carry.
		Unified cue.Value
	}
)

// CompileSchema compiles src and selects the definition at path, e.g.
// "#Config". A failure here is a programming error in the embedded schema.
func CompileSchema(src []byte, path string) (*Schema, error) {
	ctx := cuecontext.New()
	root := ctx.CompileBytes(src)
	if root.Err() != nil {
		return nil, fmt.Errorf("internal error: failed to compile schema: %w", root.Err())
	}
	def := root.LookupPath(cue.ParsePath(path))
	if def.Err() != nil {
		return nil, fmt.Errorf("internal error: schema definition %s not found: %w", path, def.Err())
	}
	return &Schema{ctx: ctx, definition: def}, nil
}

// Unify compiles data, unifies it with the schema and validates the result.
// Errors in the document are returned as *ValidationError.
func (s *Schema) Unify(data []byte, opts ...Option) (cue.Value, error) {
	options := resolveOptions(opts)
	filename := options.filename

	if err := CheckFileSize(data, options.maxFileSize, filename); err != nil {
		return cue.Value{}, err
	}

	doc := s.ctx.CompileBytes(data, cue.Filename(filename))
	if doc.Err() != nil {
		return cue.Value{}, FormatError(doc.Err(), filename)
	}

	unified := s.definition.Unify(doc)
	if err := unified.Validate(cue.Concrete(options.concrete)); err != nil {
		return cue.Value{}, FormatError(err, filename)
	}
	return unified, nil
}

// Decode unifies data with s and decodes the result into T.
func Decode[T any](s *Schema, data []byte, opts ...Option) (*ParseResult[T], error) {
	unified, err := s.Unify(data, opts...)
	if err != nil {
		return nil, err
	}

	var result T
	if err := unified.Decode(&result); err != nil {
		return nil, FormatError(err, resolveOptions(opts).filename)
	}
	return &ParseResult[T]{Value: &result, Unified: unified}, nil
}
