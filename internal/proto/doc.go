// Package proto holds the Proto Network: the flat, fully typed and
// execution-ordered form of a document produced by the compiler.
//
// A Network is an immutable snapshot. Every node input refers either to a
// constant, to an external input of the network, or to a node with a
// smaller index, so the slice order is a valid execution order. Nothing in a
// Network points back into the document it was compiled from.
//
// Each node carries a structural hash over its implementation and the
// structure of its inputs (constants by value, upstream nodes by their own
// hash, external inputs by index and type). Two structurally identical
// subgraphs therefore share hashes even when they came from different
// networks, which is what the executor keys its value cache on.
package proto
