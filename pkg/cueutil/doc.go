// SPDX-License-Identifier: MPL-2.0

// Package cueutil checks CUE documents against an embedded schema and
// decodes them into Go values. Failures come back as *ValidationError with
// the offending field paths, ready for display.
//
// # Usage
//
//	//go:embed config_schema.cue
//	var schemaSrc []byte
//
//	schema, err := cueutil.CompileSchema(schemaSrc, "#Config")
//	if err != nil {
//	    return nil, err
//	}
//	result, err := cueutil.Decode[Config](schema, data,
//	    cueutil.WithFilename("config.cue"),
//	    cueutil.WithConcrete(false),
//	)
//	if err != nil {
//	    return nil, err
//	}
//	return result.Value, nil
//
// Schema.Unify stops before decoding, for callers that decode into a map or
// look up individual paths.
package cueutil
