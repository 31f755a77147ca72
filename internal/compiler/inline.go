package compiler

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/specialistvlad/graphcraft/internal/docjson"
	"github.com/specialistvlad/graphcraft/internal/graph"
	"github.com/specialistvlad/graphcraft/internal/nodeid"
	"github.com/specialistvlad/graphcraft/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

type refKind int

const (
	refConst refKind = iota
	refNode
	refExternal
)

// ref is a fully resolved input: a constant, a flat node or an external
// input of the main network.
type ref struct {
	kind  refKind
	value cty.Value
	node  int
	ext   int
}

// inputUse names one network input crossed while resolving a reference.
type inputUse struct {
	network string
	index   int
}

type flatNode struct {
	addr   *nodeid.Address
	path   string
	inst   int
	def    *registry.Definition
	args   []graph.NodeInput
	inputs []ref
	uses   []inputUse
}

// instance is one instantiation of a network. The main network is
// instance 0 and has no parent.
type instance struct {
	net    *graph.NodeNetwork
	addr   *nodeid.Address
	parent int
	call   *graph.DocumentNode
	chain  []string
	ops    map[graph.NodeID]int
	subs   map[graph.NodeID]int
	broken map[graph.NodeID]bool
}

// errSkip marks a reference into a node that already has a diagnostic.
var errSkip = errors.New("skip")

type flattener struct {
	doc      *graph.Document
	reg      *registry.Registry
	diags    *Diagnostics
	insts    []*instance
	nodes    []*flatNode
	networks map[string]*graph.NodeNetwork
	checked  map[string]bool
}

func (f *flattener) errorf(kind error, path, network string, format string, args ...any) *Diagnostic {
	d := &Diagnostic{Severity: SeverityError, Kind: kind, Path: path, Network: network, Detail: fmt.Sprintf(format, args...)}
	*f.diags = append(*f.diags, d)
	return d
}

func (f *flattener) warnf(kind error, path, network string, format string, args ...any) {
	*f.diags = append(*f.diags, &Diagnostic{Severity: SeverityWarning, Kind: kind, Path: path, Network: network, Detail: fmt.Sprintf(format, args...)})
}

// instantiate expands main and every network reachable from it. Instances
// are processed in creation order, so the worklist is f.insts itself.
func (f *flattener) instantiate(main *graph.NodeNetwork) {
	f.insts = append(f.insts, newInstance(main, nodeid.New(main.Name), -1, nil, []string{main.Name}))

	for work := 0; work < len(f.insts); work++ {
		inst := f.insts[work]
		f.checkNetwork(inst.net)

		for _, id := range inst.net.SortedIDs() {
			node := inst.net.Nodes[id]
			addr := inst.addr.Child(string(id))

			if node.Implementation.IsNetwork() {
				name := node.Implementation.Network
				target, ok := f.doc.Networks[name]
				if !ok {
					f.errorf(ErrUnknownNetwork, addr.String(), "", "'%s'", name)
					inst.broken[id] = true
					continue
				}
				if slices.Contains(inst.chain, name) {
					f.errorf(ErrRecursiveNetwork, addr.String(), "", "%s -> %s", strings.Join(inst.chain, " -> "), name)
					inst.broken[id] = true
					continue
				}
				if len(node.Inputs) != target.Arity() {
					f.errorf(ErrArity, addr.String(), "", "network '%s' takes %d inputs, got %d", name, target.Arity(), len(node.Inputs))
					inst.broken[id] = true
					continue
				}
				chain := append(slices.Clone(inst.chain), name)
				inst.subs[id] = len(f.insts)
				f.insts = append(f.insts, newInstance(target, addr, work, node, chain))
				continue
			}

			fn, ok := f.operation(addr, node)
			if !ok {
				inst.broken[id] = true
				continue
			}
			fn.inst = work
			inst.ops[id] = len(f.nodes)
			f.nodes = append(f.nodes, fn)
		}
	}
}

func newInstance(n *graph.NodeNetwork, addr *nodeid.Address, parent int, call *graph.DocumentNode, chain []string) *instance {
	return &instance{
		net:    n,
		addr:   addr,
		parent: parent,
		call:   call,
		chain:  chain,
		ops:    make(map[graph.NodeID]int),
		subs:   make(map[graph.NodeID]int),
		broken: make(map[graph.NodeID]bool),
	}
}

// operation looks up the registry definition of an operation node. Stubs
// left by the document loader compile to their stub operation with the
// original inputs trimmed to what the stub accepts.
func (f *flattener) operation(addr *nodeid.Address, node *graph.DocumentNode) (*flatNode, bool) {
	path := addr.String()
	id := node.Implementation.Identifier
	args := node.Inputs
	stubOf := node.Metadata[docjson.UnresolvedKey]

	if stubOf != "" {
		switch id {
		case docjson.PassthroughID:
			args = args[:min(1, len(args))]
		case docjson.ErrorStubID:
			args = []graph.NodeInput{graph.Value(cty.StringVal(fmt.Sprintf("unknown node '%s'", stubOf)))}
		}
		f.warnf(WarnStub, path, "", "'%s' is not registered, compiled as %s", stubOf, id)
	}

	def, ok := f.reg.Lookup(id)
	if !ok {
		d := f.errorf(ErrUnknownNode, path, "", "'%s'", id)
		d.Suggestions = f.reg.Suggest(id)
		return nil, false
	}
	return &flatNode{addr: addr, path: path, def: def, args: args}, true
}

// checkNetwork reports problems local to a network definition once.
func (f *flattener) checkNetwork(n *graph.NodeNetwork) {
	if f.checked[n.Name] {
		return
	}
	f.checked[n.Name] = true
	f.networks[n.Name] = n

	for i, exp := range n.Exports {
		if _, ok := n.Nodes[exp.Node]; !ok {
			f.errorf(ErrDanglingReference, "", n.Name, "export %d references node '%s', which does not exist", i, exp.Node)
		}
	}
	for _, id := range n.SortedIDs() {
		for slot, in := range n.Nodes[id].Inputs {
			if in.Kind == graph.InputNetwork && (in.Index < 0 || in.Index >= n.Arity()) {
				f.errorf(ErrArity, "", n.Name, "node '%s' input %d references network input %d, network has %d", id, slot, in.Index, n.Arity())
			}
		}
	}
}

// resolve follows in through network boundaries until it reaches a
// constant, an operation node or an input of the main network. Crossing
// into a network node goes down to its export; crossing a network input
// goes up to the call-site argument.
func (f *flattener) resolve(inst int, in graph.NodeInput, uses *[]inputUse) (ref, error) {
	type step struct {
		inst int
		in   graph.NodeInput
	}
	seen := make(map[step]bool)

	for {
		st := step{inst: inst, in: in}
		st.in.Value = cty.NilVal
		if seen[st] {
			return ref{}, fmt.Errorf("%w: reference loops through network boundaries", ErrCycle)
		}
		seen[st] = true

		cur := f.insts[inst]
		switch in.Kind {
		case graph.InputValue:
			return ref{kind: refConst, value: in.Value}, nil

		case graph.InputNetwork:
			if in.Index < 0 || in.Index >= cur.net.Arity() {
				return ref{}, errSkip
			}
			*uses = append(*uses, inputUse{network: cur.net.Name, index: in.Index})
			if cur.parent < 0 {
				return ref{kind: refExternal, ext: in.Index}, nil
			}
			in = cur.call.Inputs[in.Index]
			inst = cur.parent

		case graph.InputNode:
			if cur.broken[in.Node] {
				return ref{}, errSkip
			}
			if idx, ok := cur.ops[in.Node]; ok {
				if in.Output != 0 {
					return ref{}, fmt.Errorf("%w: operation '%s' has a single output, output %d requested", ErrDanglingReference, in.Node, in.Output)
				}
				return ref{kind: refNode, node: idx}, nil
			}
			sub, ok := cur.subs[in.Node]
			if !ok {
				return ref{}, fmt.Errorf("%w: node '%s' does not exist in network '%s'", ErrDanglingReference, in.Node, cur.net.Name)
			}
			target := f.insts[sub].net
			if in.Output < 0 || in.Output >= len(target.Exports) {
				return ref{}, fmt.Errorf("%w: network '%s' has %d exports, output %d requested", ErrDanglingReference, target.Name, len(target.Exports), in.Output)
			}
			exp := target.Exports[in.Output]
			if _, ok := target.Nodes[exp.Node]; !ok {
				return ref{}, errSkip
			}
			in = graph.RefOutput(exp.Node, exp.Output)
			inst = sub

		default:
			return ref{}, fmt.Errorf("%w: input kind %s", ErrInternal, in.Kind)
		}
	}
}

// link resolves the inputs of every flat node.
func (f *flattener) link() {
	for _, fn := range f.nodes {
		fn.inputs = make([]ref, len(fn.args))
		for slot, in := range fn.args {
			r, err := f.resolve(fn.inst, in, &fn.uses)
			if err != nil {
				if !errors.Is(err, errSkip) {
					f.reportRef(fn.path, slot, err)
				}
				continue
			}
			fn.inputs[slot] = r
		}
	}
}

func (f *flattener) reportRef(path string, slot int, err error) {
	kind := ErrInternal
	for _, k := range []error{ErrDanglingReference, ErrCycle} {
		if errors.Is(err, k) {
			kind = k
		}
	}
	detail := strings.TrimPrefix(err.Error(), kind.Error()+": ")
	f.errorf(kind, path, "", "input %d: %s", slot, detail)
}

// exports resolves the exports of the main network to flat node indices.
func (f *flattener) exports(uses *[]inputUse) ([]int, bool) {
	main := f.insts[0].net
	outs := make([]int, 0, len(main.Exports))
	ok := true
	for i, exp := range main.Exports {
		if _, exists := main.Nodes[exp.Node]; !exists {
			ok = false
			continue
		}
		r, err := f.resolve(0, graph.RefOutput(exp.Node, exp.Output), uses)
		if err != nil {
			ok = false
			if !errors.Is(err, errSkip) {
				f.errorf(ErrExport, "", main.Name, "export %d: %v", i, err)
			}
			continue
		}
		if r.kind != refNode {
			ok = false
			f.errorf(ErrExport, "", main.Name, "export %d does not resolve to a node", i)
			continue
		}
		outs = append(outs, r.node)
	}
	return outs, ok
}

// selected resolves qualified node paths to flat node indices.
func (f *flattener) selected(paths []string, uses *[]inputUse) ([]int, bool) {
	main := f.insts[0].net
	outs := make([]int, 0, len(paths))
	ok := true
	for _, p := range paths {
		node, err := f.resolvePath(p, uses)
		if err != nil {
			ok = false
			if !errors.Is(err, errSkip) {
				f.errorf(ErrExport, "", main.Name, "output '%s': %v", p, err)
			}
			continue
		}
		outs = append(outs, node)
	}
	return outs, ok
}

func (f *flattener) resolvePath(path string, uses *[]inputUse) (int, error) {
	addr, err := nodeid.Parse(path)
	if err != nil {
		return 0, err
	}
	main := f.insts[0].net
	if root := addr.Path[0]; root.Name != main.Name || root.HasIndex() {
		return 0, fmt.Errorf("path must start with the main network '%s'", main.Name)
	}
	if len(addr.Path) < 2 {
		return 0, errors.New("path names a network, not a node")
	}

	inst := 0
	for _, seg := range addr.Path[1 : len(addr.Path)-1] {
		sub, found := f.insts[inst].subs[graph.NodeID(seg.Name)]
		if !found || seg.HasIndex() {
			return 0, fmt.Errorf("'%s' is not a network node in '%s'", seg.Name, f.insts[inst].net.Name)
		}
		inst = sub
	}

	leaf := addr.Path[len(addr.Path)-1]
	output := 0
	if leaf.HasIndex() {
		output = leaf.Index
	}
	r, err := f.resolve(inst, graph.RefOutput(graph.NodeID(leaf.Name), output), uses)
	if err != nil {
		return 0, err
	}
	if r.kind != refNode {
		return 0, errors.New("does not resolve to a node")
	}
	return r.node, nil
}
