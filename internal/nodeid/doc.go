/*
Package nodeid provides a structured representation for the qualified path of
a node after network inlining.

A path is a dot-separated sequence of document node ids, outermost first:
`blur.kernel.add` is node `add` inside the instance `kernel` inside the
instance `blur` of the main network. A segment may carry an output index,
`split[1]`, when the path names a specific output of a node.
*/
package nodeid
