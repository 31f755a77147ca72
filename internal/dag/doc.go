// Package dag holds a small directed graph keyed by string ids.
//
// Cycle reports and topological orders do not depend on map iteration:
// nodes are always visited in id order, so the compiler's ordering pass
// and the document validator give identical results for identical inputs.
package dag
