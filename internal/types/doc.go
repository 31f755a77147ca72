// Package types is the value and type layer shared by the registry, the
// compiler and the executor.
//
// Values are cty.Value; concrete types are cty.Type. Node signatures are
// written with type expressions (Expr) that may mention generic parameters,
// e.g. `list(T)`. Matching a signature against concrete input types binds
// the parameters and yields a monomorphized signature.
package types
