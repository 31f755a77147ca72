package dag

import (
	"container/heap"
	"fmt"
	"sort"
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddNode adds a new node with the given ID to the graph. If a node with
// the same ID already exists, the function does nothing.
func (g *Graph) AddNode(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}

	g.nodes[id] = &node{
		id:         id,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
}

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// This signifies that `toID` has a dependency on `fromID`. An error is returned
// if either node does not exist. A self edge is recorded; it is reported as
// a cycle by DetectCycles and TopologicalSort.
func (g *Graph) AddEdge(fromID, toID string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}

	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	toNode.deps[fromID] = fromNode
	fromNode.dependents[toID] = toNode

	return nil
}

// DetectCycles checks the graph for any cycles. The returned *CycleError
// carries the full path of the first cycle found, visiting nodes in id order.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.detectCyclesLocked()
}

func (g *Graph) detectCyclesLocked() error {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(n *node) error
	visit = func(n *node) error {
		switch color[n.id] {
		case black:
			return nil
		case grey:
			start := 0
			for i, id := range stack {
				if id == n.id {
					start = i
					break
				}
			}
			path := append([]string{}, stack[start:]...)
			return &CycleError{Path: append(path, n.id)}
		}

		color[n.id] = grey
		stack = append(stack, n.id)
		for _, id := range sortedKeys(n.dependents) {
			if err := visit(n.dependents[id]); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		color[n.id] = black
		return nil
	}

	for _, id := range sortedKeys(g.nodes) {
		if err := visit(g.nodes[id]); err != nil {
			return err
		}
	}
	return nil
}

// TopologicalSort returns every node id ordered so that each node comes after
// all of its dependencies. Among nodes that are ready at the same time the
// smallest id goes first, so the order is fully determined by the graph.
func (g *Graph) TopologicalSort() ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	if err := g.detectCyclesLocked(); err != nil {
		return nil, err
	}

	indegree := make(map[string]int, len(g.nodes))
	ready := &idHeap{}
	for id, n := range g.nodes {
		indegree[id] = len(n.deps)
		if len(n.deps) == 0 {
			*ready = append(*ready, id)
		}
	}
	heap.Init(ready)

	order := make([]string, 0, len(g.nodes))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(string)
		order = append(order, id)
		for depID := range g.nodes[id].dependents {
			indegree[depID]--
			if indegree[depID] == 0 {
				heap.Push(ready, depID)
			}
		}
	}
	return order, nil
}

func sortedKeys(m map[string]*node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// idHeap is a min-heap of node ids.
type idHeap []string

func (h idHeap) Len() int           { return len(h) }
func (h idHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x any)        { *h = append(*h, x.(string)) }
func (h *idHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
