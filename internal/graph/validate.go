package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/graphcraft/internal/dag"
	"github.com/zclconf/go-cty/cty"
)

// Issue is one structural problem found by Validate.
type Issue struct {
	Network string
	Node    NodeID
	Msg     string
}

func (i *Issue) Error() string {
	if i.Node == "" {
		return fmt.Sprintf("network '%s': %s", i.Network, i.Msg)
	}
	return fmt.Sprintf("network '%s', node '%s': %s", i.Network, i.Node, i.Msg)
}

// ErrInvalidDocument is matched by every *ValidationError.
var ErrInvalidDocument = errors.New("invalid document")

// ValidationError collects every issue found in a document.
type ValidationError struct {
	Issues []*Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.Error()
	}
	return "invalid document:\n- " + strings.Join(parts, "\n- ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidDocument }

// Validate checks the structural invariants of the network on its own.
func (n *NodeNetwork) Validate() []*Issue {
	var issues []*Issue
	add := func(node NodeID, format string, args ...any) {
		issues = append(issues, &Issue{Network: n.Name, Node: node, Msg: fmt.Sprintf(format, args...)})
	}

	g := dag.New()
	for _, id := range n.SortedIDs() {
		g.AddNode(string(id))
	}

	for _, id := range n.SortedIDs() {
		node := n.Nodes[id]
		if node.ID != id {
			add(id, "stored under id '%s' but declares id '%s'", id, node.ID)
		}
		if !id.Valid() {
			add(id, "invalid node id")
		}
		impl := node.Implementation
		if (impl.Identifier == "") == (impl.Network == "") {
			add(id, "must name exactly one of an operation or a network")
		}
		for slot, in := range node.Inputs {
			switch in.Kind {
			case InputNode:
				if _, ok := n.Nodes[in.Node]; !ok {
					add(id, "input %d references unknown node '%s'", slot, in.Node)
					continue
				}
				if in.Output < 0 {
					add(id, "input %d references negative output %d", slot, in.Output)
				}
				// Edge errors are impossible: both ends were added above.
				_ = g.AddEdge(string(in.Node), string(id))
			case InputNetwork:
				if in.Index < 0 || in.Index >= n.Arity() {
					add(id, "input %d references network input %d, network has %d", slot, in.Index, n.Arity())
				}
			case InputValue:
				if in.Value.Type() == cty.NilType || !in.Value.IsWhollyKnown() {
					add(id, "input %d has no known constant value", slot)
				}
			default:
				add(id, "input %d has unknown kind %d", slot, int(in.Kind))
			}
		}
	}

	for i, exp := range n.Exports {
		if _, ok := n.Nodes[exp.Node]; !ok {
			add("", "export %d references unknown node '%s'", i, exp.Node)
		}
	}

	seen := make(map[string]bool)
	for _, in := range n.Inputs {
		if seen[in.Name] {
			add("", "input '%s' is declared twice", in.Name)
		}
		seen[in.Name] = true
	}

	if err := g.DetectCycles(); err != nil {
		var cycle *dag.CycleError
		if errors.As(err, &cycle) {
			add(NodeID(cycle.Path[0]), "dependency cycle: %s", strings.Join(cycle.Path, " -> "))
		} else {
			add("", "%v", err)
		}
	}
	return issues
}

// Validate checks every network and the references between them.
func (d *Document) Validate() error {
	var issues []*Issue
	if d.Version != CurrentVersion {
		issues = append(issues, &Issue{Network: d.Main, Msg: fmt.Sprintf("unsupported version %d", d.Version)})
	}
	if _, ok := d.MainNetwork(); !ok {
		issues = append(issues, &Issue{Network: d.Main, Msg: "main network not found"})
	}

	for _, name := range d.NetworkNames() {
		n := d.Networks[name]
		if n.Name != name {
			issues = append(issues, &Issue{Network: name, Msg: fmt.Sprintf("stored under '%s' but named '%s'", name, n.Name)})
		}
		issues = append(issues, n.Validate()...)

		for _, id := range n.SortedIDs() {
			node := n.Nodes[id]
			if !node.Implementation.IsNetwork() {
				for slot, in := range node.Inputs {
					if in.Kind == InputNode {
						if src, ok := n.Nodes[in.Node]; ok && !src.Implementation.IsNetwork() && in.Output != 0 {
							issues = append(issues, &Issue{Network: name, Node: id,
								Msg: fmt.Sprintf("input %d references output %d of operation '%s', which has one output", slot, in.Output, in.Node)})
						}
					}
				}
				continue
			}
			target, ok := d.Networks[node.Implementation.Network]
			if !ok {
				issues = append(issues, &Issue{Network: name, Node: id, Msg: fmt.Sprintf("unknown network '%s'", node.Implementation.Network)})
				continue
			}
			if len(node.Inputs) != target.Arity() {
				issues = append(issues, &Issue{Network: name, Node: id,
					Msg: fmt.Sprintf("network '%s' takes %d inputs, got %d", target.Name, target.Arity(), len(node.Inputs))})
			}
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
