package compiler

import (
	"context"
	"errors"
	"strings"

	"github.com/specialistvlad/graphcraft/internal/ctxlog"
	"github.com/specialistvlad/graphcraft/internal/dag"
	"github.com/specialistvlad/graphcraft/internal/graph"
	"github.com/specialistvlad/graphcraft/internal/proto"
	"github.com/specialistvlad/graphcraft/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Compiler compiles documents against one registry. It holds no state
// between compilations and is safe for concurrent use.
type Compiler struct {
	reg *registry.Registry
}

// New returns a compiler for reg.
func New(reg *registry.Registry) *Compiler {
	return &Compiler{reg: reg}
}

// Compile compiles the main network of doc. On failure the network is nil,
// the diagnostics hold every finding and the error is a *Error.
func (c *Compiler) Compile(ctx context.Context, doc *graph.Document, opts ...Option) (*proto.Network, Diagnostics, error) {
	logger := ctxlog.FromContext(ctx)
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var diags Diagnostics
	fail := func() (*proto.Network, Diagnostics, error) {
		logger.Debug("Compilation failed.", "errors", len(diags.Errors()), "warnings", len(diags.Warnings()))
		return nil, diags, newError(diags)
	}

	main, ok := doc.MainNetwork()
	if !ok {
		diags = append(diags, &Diagnostic{Severity: SeverityError, Kind: ErrNoMain, Network: doc.Main})
		return fail()
	}

	f := &flattener{
		doc:      doc,
		reg:      c.reg,
		diags:    &diags,
		networks: make(map[string]*graph.NodeNetwork),
		checked:  make(map[string]bool),
	}

	logger.Debug("Inlining networks.", "main", main.Name)
	f.instantiate(main)
	f.link()
	var exportUses []inputUse
	var outputs []int
	var exportsOK bool
	if len(o.outputs) > 0 {
		outputs, exportsOK = f.selected(o.outputs, &exportUses)
	} else {
		outputs, exportsOK = f.exports(&exportUses)
	}
	logger.Debug("Inlined networks.", "instances", len(f.insts), "nodes", len(f.nodes))
	if diags.HasErrors() || !exportsOK {
		return fail()
	}

	order, err := f.order()
	if err != nil {
		return fail()
	}

	keep := f.prune(order, outputs, exportUses)
	logger.Debug("Pruned unreachable nodes.", "kept", len(keep), "total", len(f.nodes))

	inputs, ok := f.params(o.inputTypes)
	if !ok {
		return fail()
	}

	r := &resolver{f: f, params: inputs}
	r.resolveAll(keep)
	if diags.HasErrors() {
		return fail()
	}

	net, err := r.emit(keep, outputs)
	if err != nil {
		diags = append(diags, &Diagnostic{Severity: SeverityError, Kind: ErrInternal, Detail: err.Error()})
		return fail()
	}
	logger.Debug("Compilation finished.", "nodes", len(net.Nodes), "hash", net.Hash.Short(), "warnings", len(diags))
	return net, diags, nil
}

// order sorts all flat nodes topologically. Ties are broken by path.
func (f *flattener) order() ([]int, error) {
	g := dag.New()
	index := make(map[string]int, len(f.nodes))
	for i, fn := range f.nodes {
		g.AddNode(fn.path)
		index[fn.path] = i
	}
	for _, fn := range f.nodes {
		for _, r := range fn.inputs {
			if r.kind == refNode {
				if err := g.AddEdge(f.nodes[r.node].path, fn.path); err != nil {
					f.errorf(ErrInternal, fn.path, "", "%v", err)
					return nil, err
				}
			}
		}
	}

	sorted, err := g.TopologicalSort()
	if err != nil {
		var cycle *dag.CycleError
		if errors.As(err, &cycle) {
			f.errorf(ErrCycle, cycle.Path[0], "", "%s", strings.Join(cycle.Path, " -> "))
		} else {
			f.errorf(ErrCycle, "", "", "%v", err)
		}
		return nil, err
	}

	order := make([]int, len(sorted))
	for i, path := range sorted {
		order[i] = index[path]
	}
	return order, nil
}

// prune keeps the nodes reachable from outputs, in topological order, and
// warns about everything else.
func (f *flattener) prune(order, outputs []int, exportUses []inputUse) []int {
	live := make([]bool, len(f.nodes))
	stack := append([]int(nil), outputs...)
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if live[i] {
			continue
		}
		live[i] = true
		for _, r := range f.nodes[i].inputs {
			if r.kind == refNode {
				stack = append(stack, r.node)
			}
		}
	}

	used := make(map[inputUse]bool)
	for _, u := range exportUses {
		used[u] = true
	}

	var keep []int
	for _, i := range order {
		fn := f.nodes[i]
		if !live[i] {
			f.warnf(WarnEliminated, fn.path, "", "not reachable from any export")
			continue
		}
		keep = append(keep, i)
		for _, u := range fn.uses {
			used[u] = true
		}
	}

	for _, name := range sortedNames(f.networks) {
		n := f.networks[name]
		for i, in := range n.Inputs {
			if !used[inputUse{network: name, index: i}] {
				f.warnf(WarnUnusedInput, "", name, "input '%s' is never used", in.Name)
			}
		}
	}
	return keep
}

// params determines the external input types of the main network.
func (f *flattener) params(override []cty.Type) ([]proto.Param, bool) {
	main := f.insts[0].net
	if len(override) > main.Arity() {
		f.errorf(ErrArity, "", main.Name, "%d input types supplied, network has %d inputs", len(override), main.Arity())
		return nil, false
	}
	out := make([]proto.Param, main.Arity())
	ok := true
	for i, decl := range main.Inputs {
		t := decl.Type
		if i < len(override) && override[i] != cty.NilType {
			t = override[i]
		}
		if t == cty.NilType || t == cty.DynamicPseudoType {
			f.errorf(ErrUntypedInput, "", main.Name, "input '%s' needs a concrete type", decl.Name)
			ok = false
		}
		out[i] = proto.Param{Name: decl.Name, Type: t}
	}
	return out, ok
}

func sortedNames(m map[string]*graph.NodeNetwork) []string {
	doc := graph.Document{Networks: m}
	return doc.NetworkNames()
}
