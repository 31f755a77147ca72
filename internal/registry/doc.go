// Package registry maps node identifiers such as "math.add" to their
// implementations.
//
// Modules register implementations on a Builder during startup. Build checks
// every typed Go handler against its declared signature and freezes the
// result into a Registry, which is read-only and safe for concurrent use
// without locking. An identifier may carry several implementations with
// different signatures; the compiler picks one per node by the node's
// concrete input types.
package registry
