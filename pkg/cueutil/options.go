// SPDX-License-Identifier: MPL-2.0

package cueutil

// DefaultMaxFileSize bounds documents checked by a Schema. Config files are
// a few hundred bytes; anything near this is a mistake.
const DefaultMaxFileSize int64 = 5 << 20

// Option adjusts how a document is checked.
type Option func(*parseOptions)

type parseOptions struct {
	maxFileSize int64
	concrete    bool
	filename    string
}

func resolveOptions(opts []Option) parseOptions {
	o := parseOptions{maxFileSize: DefaultMaxFileSize, concrete: true, filename: "<input>"}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithMaxFileSize rejects documents larger than size bytes.
func WithMaxFileSize(size int64) Option {
	return func(o *parseOptions) { o.maxFileSize = size }
}

// WithConcrete controls whether every field must have a concrete value after
// unification. Documents that leave optional fields out need false.
func WithConcrete(concrete bool) Option {
	return func(o *parseOptions) { o.concrete = concrete }
}

// WithFilename names the document in error positions. An empty name keeps
// the default "<input>".
func WithFilename(name string) Option {
	return func(o *parseOptions) {
		if name != "" {
			o.filename = name
		}
	}
}
