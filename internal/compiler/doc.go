// Package compiler turns a graph.Document into a proto.Network.
//
// Compilation runs in passes over a flat arena of nodes:
//
//  1. inline: network nodes are expanded through an explicit worklist of
//     network instances. Network inputs are resolved through the call-site
//     arguments of the instance, and a network that appears twice on its own
//     instantiation chain is rejected.
//  2. order: every flattened node goes into a dag.Graph; any cycle aborts
//     compilation. Ties in the topological order are broken by qualified path.
//  3. prune: only nodes reachable from the main network's exports survive.
//  4. resolve: each surviving node's overloads are unified against the
//     concrete types of its inputs and the most specific match is chosen.
//  5. emit: the survivors become a proto.Network in topological order.
//
// Every problem is recorded as a Diagnostic. Warnings never stop compilation;
// any error does, and Compile then returns no network.
package compiler
