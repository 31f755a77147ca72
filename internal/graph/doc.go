// Package graph is the user-facing document model: networks of nodes wired
// together by their inputs.
//
// # Model
//
// A Document holds named NodeNetworks and names one of them as Main. A
// network declares typed inputs, owns its nodes, and lists its exports. A
// DocumentNode is either an operation from the registry (Implementation
// with an Identifier) or an instance of another network of the same
// document (Implementation with a Network name). Each input slot of a node
// is a NodeInput:
//
//	Value(v)          a constant
//	Node(id, out)     output `out` of node `id` in the same network
//	NetworkInput(i)   the i-th input of the enclosing network
//
// Registry operations have exactly one output (index 0). A network instance
// has one output per export of the referenced network.
//
// # Ownership
//
// The document exclusively owns its networks and a network exclusively owns
// its nodes. Nothing outside the document keeps pointers into it: the
// compiler copies what it needs into an independent proto network.
//
// # Validation
//
// Validate checks the structural invariants of every network (references
// resolve within the network, input indices are within arity, the local
// graph is acyclic) and of the document (Main exists, network instances name
// existing networks with the right number of arguments). It reports every
// problem it finds as an Issue; it does not look at the registry, so unknown
// identifiers and type errors are left to the compiler.
//
// # Thread-Safety
//
// Documents are plain data and are not safe for concurrent mutation.
// Callers that edit a document while compiling another snapshot of it must
// Clone it first.
package graph
