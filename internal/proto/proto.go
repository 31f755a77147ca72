package proto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/graphcraft/internal/registry"
	"github.com/specialistvlad/graphcraft/internal/types"
	"github.com/zclconf/go-cty/cty"
)

// InputKind tags an Input.
type InputKind int

const (
	Const InputKind = iota
	NodeRef
	External
)

func (k InputKind) String() string {
	switch k {
	case Const:
		return "const"
	case NodeRef:
		return "node"
	case External:
		return "external"
	}
	return fmt.Sprintf("InputKind(%d)", int(k))
}

// Input is a resolved input of a node.
type Input struct {
	Kind     InputKind
	Value    cty.Value
	Node     int
	External int
}

// ConstInput returns a constant input.
func ConstInput(v cty.Value) Input { return Input{Kind: Const, Value: v} }

// NodeInput returns an input fed by an earlier node.
func NodeInput(i int) Input { return Input{Kind: NodeRef, Node: i} }

// ExternalInput returns an input fed by the i-th network input.
func ExternalInput(i int) Input { return Input{Kind: External, External: i} }

// Node is a flattened, monomorphized node.
type Node struct {
	// Path is the qualified path of the node in the document, e.g.
	// "main.blur.kernel".
	Path       string
	Identifier string
	Impl       *registry.Implementation
	ImplKey    string
	Inputs     []Input
	InputTypes []cty.Type
	OutputType cty.Type
	Hash       types.Digest
}

// Pure reports whether the node may be cached.
func (n *Node) Pure() bool { return n.Impl != nil && n.Impl.Pure }

// Param is an external input of a network.
type Param struct {
	Name string
	Type cty.Type
}

// Network is the compiled form. Build it with New.
type Network struct {
	Nodes   []*Node
	Inputs  []Param
	Outputs []int
	Hash    types.Digest
}

// ErrInvalid is matched by every error returned from Validate.
var ErrInvalid = errors.New("invalid proto network")

// New validates the parts and computes every hash.
func New(inputs []Param, nodes []*Node, outputs []int) (*Network, error) {
	n := &Network{Nodes: nodes, Inputs: inputs, Outputs: outputs}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	if err := n.rehash(); err != nil {
		return nil, err
	}
	return n, nil
}

// Validate re-checks the ordering invariant and every index.
func (n *Network) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}
	for i, node := range n.Nodes {
		if node.Impl == nil {
			return fail("node %d (%s) has no implementation", i, node.Path)
		}
		if len(node.InputTypes) != len(node.Inputs) {
			return fail("node %d (%s) has %d inputs but %d input types", i, node.Path, len(node.Inputs), len(node.InputTypes))
		}
		for slot, in := range node.Inputs {
			switch in.Kind {
			case Const:
				if in.Value.Type() == cty.NilType {
					return fail("node %d (%s) input %d: missing constant", i, node.Path, slot)
				}
			case NodeRef:
				if in.Node < 0 || in.Node >= i {
					return fail("node %d (%s) input %d references node %d, which does not precede it", i, node.Path, slot, in.Node)
				}
			case External:
				if in.External < 0 || in.External >= len(n.Inputs) {
					return fail("node %d (%s) input %d references external input %d of %d", i, node.Path, slot, in.External, len(n.Inputs))
				}
			default:
				return fail("node %d (%s) input %d has kind %s", i, node.Path, slot, in.Kind)
			}
		}
	}
	for i, out := range n.Outputs {
		if out < 0 || out >= len(n.Nodes) {
			return fail("output %d references node %d of %d", i, out, len(n.Nodes))
		}
	}
	return nil
}

func (n *Network) rehash() error {
	for _, node := range n.Nodes {
		x := types.NewHasher().Str("node").Str(node.Identifier).Str(node.ImplKey)
		x.Str(node.OutputType.GoString()).Int(len(node.Inputs))
		for slot, in := range node.Inputs {
			x.Int(int(in.Kind))
			switch in.Kind {
			case Const:
				if err := x.Value(in.Value); err != nil {
					return fmt.Errorf("node %s input %d: %w", node.Path, slot, err)
				}
			case NodeRef:
				x.Digest(n.Nodes[in.Node].Hash)
			case External:
				x.Int(in.External).Str(n.Inputs[in.External].Type.GoString())
			}
		}
		node.Hash = x.Sum()
	}

	x := types.NewHasher().Str("network").Int(len(n.Inputs))
	for _, p := range n.Inputs {
		x.Str(p.Type.GoString())
	}
	x.Int(len(n.Nodes))
	for _, node := range n.Nodes {
		x.Digest(node.Hash)
	}
	x.Int(len(n.Outputs))
	for _, out := range n.Outputs {
		x.Int(out)
	}
	n.Hash = x.Sum()
	return nil
}

// Dependencies returns the indices of the nodes feeding node i, in slot
// order, duplicates removed.
func (n *Network) Dependencies(i int) []int {
	var deps []int
	seen := make(map[int]bool)
	for _, in := range n.Nodes[i].Inputs {
		if in.Kind == NodeRef && !seen[in.Node] {
			seen[in.Node] = true
			deps = append(deps, in.Node)
		}
	}
	return deps
}

// Subset returns the network restricted to the nodes needed by the given
// outputs, which are indices into n.Outputs. External inputs keep their
// indices.
func (n *Network) Subset(outputs []int) (*Network, error) {
	keep := make([]bool, len(n.Nodes))
	var stack []int
	for _, o := range outputs {
		if o < 0 || o >= len(n.Outputs) {
			return nil, fmt.Errorf("%w: output %d of %d", ErrInvalid, o, len(n.Outputs))
		}
		stack = append(stack, n.Outputs[o])
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if keep[i] {
			continue
		}
		keep[i] = true
		stack = append(stack, n.Dependencies(i)...)
	}

	remap := make([]int, len(n.Nodes))
	var nodes []*Node
	for i, node := range n.Nodes {
		if !keep[i] {
			continue
		}
		remap[i] = len(nodes)
		c := *node
		c.Inputs = make([]Input, len(node.Inputs))
		for slot, in := range node.Inputs {
			if in.Kind == NodeRef {
				in.Node = remap[in.Node]
			}
			c.Inputs[slot] = in
		}
		nodes = append(nodes, &c)
	}
	outs := make([]int, len(outputs))
	for i, o := range outputs {
		outs[i] = remap[n.Outputs[o]]
	}
	return New(append([]Param(nil), n.Inputs...), nodes, outs)
}

// OutputTypes returns the types of the network outputs.
func (n *Network) OutputTypes() []cty.Type {
	out := make([]cty.Type, len(n.Outputs))
	for i, o := range n.Outputs {
		out[i] = n.Nodes[o].OutputType
	}
	return out
}

// String renders the network one node per line, for debugging and tests.
func (n *Network) String() string {
	var b strings.Builder
	for i, p := range n.Inputs {
		fmt.Fprintf(&b, "$%d %s: %s\n", i, p.Name, types.TypeString(p.Type))
	}
	for i, node := range n.Nodes {
		args := make([]string, len(node.Inputs))
		for slot, in := range node.Inputs {
			switch in.Kind {
			case Const:
				args[slot] = in.Value.GoString()
			case NodeRef:
				args[slot] = fmt.Sprintf("%%%d", in.Node)
			case External:
				args[slot] = fmt.Sprintf("$%d", in.External)
			}
		}
		fmt.Fprintf(&b, "%%%d = %s(%s) : %s  # %s\n", i, node.Identifier, strings.Join(args, ", "), types.TypeString(node.OutputType), node.Path)
	}
	outs := make([]string, len(n.Outputs))
	for i, o := range n.Outputs {
		outs[i] = fmt.Sprintf("%%%d", o)
	}
	fmt.Fprintf(&b, "return %s\n", strings.Join(outs, ", "))
	return b.String()
}
