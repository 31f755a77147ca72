package graph

import (
	"fmt"
	"maps"
	"regexp"
	"slices"

	"github.com/zclconf/go-cty/cty"
)

// CurrentVersion is the document format version written by this package.
const CurrentVersion = 1

var nodeIDRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// NodeID identifies a node within its network.
type NodeID string

// Valid reports whether id has the allowed shape.
func (id NodeID) Valid() bool { return nodeIDRegex.MatchString(string(id)) }

// InputKind tags a NodeInput.
type InputKind int

const (
	InputValue InputKind = iota
	InputNode
	InputNetwork
)

func (k InputKind) String() string {
	switch k {
	case InputValue:
		return "value"
	case InputNode:
		return "node"
	case InputNetwork:
		return "network_input"
	}
	return fmt.Sprintf("InputKind(%d)", int(k))
}

// NodeInput is one input slot of a node.
type NodeInput struct {
	Kind   InputKind
	Value  cty.Value
	Node   NodeID
	Output int
	Index  int
}

// Value is a constant input.
func Value(v cty.Value) NodeInput { return NodeInput{Kind: InputValue, Value: v} }

// Ref is output 0 of another node.
func Ref(id NodeID) NodeInput { return NodeInput{Kind: InputNode, Node: id} }

// RefOutput is a specific output of another node.
func RefOutput(id NodeID, output int) NodeInput {
	return NodeInput{Kind: InputNode, Node: id, Output: output}
}

// NetworkInput is the i-th input of the enclosing network.
func NetworkInput(i int) NodeInput { return NodeInput{Kind: InputNetwork, Index: i} }

func (in NodeInput) String() string {
	switch in.Kind {
	case InputValue:
		return fmt.Sprintf("value(%s)", in.Value.GoString())
	case InputNode:
		if in.Output == 0 {
			return fmt.Sprintf("node(%s)", in.Node)
		}
		return fmt.Sprintf("node(%s[%d])", in.Node, in.Output)
	default:
		return fmt.Sprintf("input(%d)", in.Index)
	}
}

// Implementation says what a node does: a registry operation or a network.
type Implementation struct {
	Identifier string
	Network    string
}

// Op refers to a registry identifier.
func Op(identifier string) Implementation { return Implementation{Identifier: identifier} }

// Net refers to a network of the document.
func Net(name string) Implementation { return Implementation{Network: name} }

// IsNetwork reports whether the node instantiates a network.
func (impl Implementation) IsNetwork() bool { return impl.Network != "" }

func (impl Implementation) String() string {
	if impl.IsNetwork() {
		return "network " + impl.Network
	}
	return impl.Identifier
}

// DocumentNode is a node of a network.
type DocumentNode struct {
	ID             NodeID
	Implementation Implementation
	Inputs         []NodeInput
	Metadata       map[string]string
}

// InputDecl declares an input of a network. Type may be cty.DynamicPseudoType
// for inputs whose type is taken from the call site.
type InputDecl struct {
	Name string
	Type cty.Type
}

// Export names one output of a network.
type Export struct {
	Node   NodeID
	Output int
}

// NodeNetwork is a graph of nodes with designated exports.
type NodeNetwork struct {
	Name    string
	Inputs  []InputDecl
	Nodes   map[NodeID]*DocumentNode
	Exports []Export
}

// NewNetwork returns an empty network.
func NewNetwork(name string, inputs ...InputDecl) *NodeNetwork {
	return &NodeNetwork{Name: name, Inputs: inputs, Nodes: make(map[NodeID]*DocumentNode)}
}

// Arity is the number of declared inputs.
func (n *NodeNetwork) Arity() int { return len(n.Inputs) }

// InputIndex finds a declared input by name.
func (n *NodeNetwork) InputIndex(name string) (int, bool) {
	for i, in := range n.Inputs {
		if in.Name == name {
			return i, true
		}
	}
	return -1, false
}

// AddNode inserts a node. The id must be valid and unused.
func (n *NodeNetwork) AddNode(node *DocumentNode) error {
	if !node.ID.Valid() {
		return fmt.Errorf("network '%s': invalid node id %q", n.Name, node.ID)
	}
	if _, exists := n.Nodes[node.ID]; exists {
		return fmt.Errorf("network '%s': node '%s' already exists", n.Name, node.ID)
	}
	n.Nodes[node.ID] = node
	return nil
}

// RemoveNode deletes a node. It fails while other nodes or exports still
// reference it.
func (n *NodeNetwork) RemoveNode(id NodeID) error {
	if _, ok := n.Nodes[id]; !ok {
		return fmt.Errorf("network '%s': node '%s' not found", n.Name, id)
	}
	for _, other := range n.SortedIDs() {
		for _, in := range n.Nodes[other].Inputs {
			if in.Kind == InputNode && in.Node == id {
				return fmt.Errorf("network '%s': node '%s' is still used by '%s'", n.Name, id, other)
			}
		}
	}
	for _, exp := range n.Exports {
		if exp.Node == id {
			return fmt.Errorf("network '%s': node '%s' is exported", n.Name, id)
		}
	}
	delete(n.Nodes, id)
	return nil
}

// SetInput replaces input slot i of node id.
func (n *NodeNetwork) SetInput(id NodeID, i int, in NodeInput) error {
	node, ok := n.Nodes[id]
	if !ok {
		return fmt.Errorf("network '%s': node '%s' not found", n.Name, id)
	}
	if i < 0 || i >= len(node.Inputs) {
		return fmt.Errorf("network '%s': node '%s' has no input %d", n.Name, id, i)
	}
	node.Inputs[i] = in
	return nil
}

// Export appends an export.
func (n *NodeNetwork) Export(id NodeID, output int) {
	n.Exports = append(n.Exports, Export{Node: id, Output: output})
}

// SortedIDs returns the node ids in lexical order.
func (n *NodeNetwork) SortedIDs() []NodeID {
	return slices.Sorted(maps.Keys(n.Nodes))
}

// Document is the serializable root.
type Document struct {
	Version  int
	Main     string
	Networks map[string]*NodeNetwork
}

// NewDocument returns an empty document at the current version.
func NewDocument(main string) *Document {
	return &Document{Version: CurrentVersion, Main: main, Networks: make(map[string]*NodeNetwork)}
}

// AddNetwork inserts a network under its own name.
func (d *Document) AddNetwork(n *NodeNetwork) error {
	if n.Name == "" {
		return fmt.Errorf("network name must not be empty")
	}
	if _, exists := d.Networks[n.Name]; exists {
		return fmt.Errorf("network '%s' already exists", n.Name)
	}
	d.Networks[n.Name] = n
	return nil
}

// MainNetwork returns the entry network.
func (d *Document) MainNetwork() (*NodeNetwork, bool) {
	n, ok := d.Networks[d.Main]
	return n, ok
}

// NetworkNames returns the network names in lexical order.
func (d *Document) NetworkNames() []string {
	return slices.Sorted(maps.Keys(d.Networks))
}

// Clone returns a deep copy. Constant values are immutable and shared.
func (d *Document) Clone() *Document {
	out := &Document{Version: d.Version, Main: d.Main, Networks: make(map[string]*NodeNetwork, len(d.Networks))}
	for name, n := range d.Networks {
		c := &NodeNetwork{
			Name:    n.Name,
			Inputs:  slices.Clone(n.Inputs),
			Nodes:   make(map[NodeID]*DocumentNode, len(n.Nodes)),
			Exports: slices.Clone(n.Exports),
		}
		for id, node := range n.Nodes {
			c.Nodes[id] = &DocumentNode{
				ID:             node.ID,
				Implementation: node.Implementation,
				Inputs:         slices.Clone(node.Inputs),
				Metadata:       maps.Clone(node.Metadata),
			}
		}
		out.Networks[name] = c
	}
	return out
}
