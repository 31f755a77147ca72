package compiler

import "github.com/zclconf/go-cty/cty"

// Option configures one compilation.
type Option func(*options)

type options struct {
	inputTypes []cty.Type
	outputs    []string
}

// WithInputTypes supplies the types of the main network inputs, overriding
// the declared types. A cty.NilType entry keeps the declared type.
func WithInputTypes(ts ...cty.Type) Option {
	return func(o *options) { o.inputTypes = ts }
}

// WithOutputs compiles the nodes at the given qualified paths in place of
// the main network's exports. A path starts at the main network, e.g.
// "main.blur.kernel", and may name an output index with "main.split[1]".
func WithOutputs(paths ...string) Option {
	return func(o *options) { o.outputs = paths }
}
