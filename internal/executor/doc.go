// Package executor evaluates a proto.Network by interpretation.
//
// Nodes run in the stored order of the network, or, with more than one
// worker, as soon as all of their dependencies have finished. Values of pure
// nodes are cached in a memo.Cache under a key derived from the node's
// structural hash and the keys of its inputs, so repeated executions of the
// same structure with the same inputs reuse earlier results. The cache only
// ever saves work: results are identical with a cold, warm or absent cache.
//
// A failing node does not stop the execution. Its dependents are skipped,
// unrelated nodes still run, and every failure is returned as a *NodeError
// aggregated with multierr.
package executor
