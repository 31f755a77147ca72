package compiler

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/graphcraft/internal/proto"
	"github.com/specialistvlad/graphcraft/internal/registry"
	"github.com/specialistvlad/graphcraft/internal/types"
	"github.com/zclconf/go-cty/cty"
)

type choice struct {
	impl     *registry.Implementation
	resolved *types.Resolved
}

type resolver struct {
	f      *flattener
	params []proto.Param
	chosen map[int]*choice
}

// resolveAll picks an implementation for every kept node, in topological
// order so that the output type of every dependency is already known. Nodes
// downstream of a failed node are skipped without a diagnostic of their own.
func (r *resolver) resolveAll(keep []int) {
	r.chosen = make(map[int]*choice, len(keep))
	for _, i := range keep {
		fn := r.f.nodes[i]
		actual := make([]cty.Type, len(fn.inputs))
		skip := false
		for slot, in := range fn.inputs {
			switch in.kind {
			case refConst:
				actual[slot] = in.value.Type()
			case refExternal:
				actual[slot] = r.params[in.ext].Type
			case refNode:
				c, ok := r.chosen[in.node]
				if !ok {
					skip = true
					break
				}
				actual[slot] = c.resolved.Output
			}
		}
		if skip {
			continue
		}
		if c := r.pick(fn, actual); c != nil {
			r.chosen[i] = c
		}
	}
}

// pick unifies every overload with the actual input types. The most
// specific match wins; a tie between the best matches is ambiguous.
func (r *resolver) pick(fn *flatNode, actual []cty.Type) *choice {
	var (
		best     []*choice
		bestRank = -1
		rejected []string
	)
	for _, impl := range fn.def.Implementations() {
		res, err := impl.Signature.Match(actual)
		if err != nil {
			rejected = append(rejected, err.Error())
			continue
		}
		rank := impl.Signature.Specificity()
		switch {
		case rank > bestRank:
			best, bestRank = []*choice{{impl: impl, resolved: res}}, rank
		case rank == bestRank:
			best = append(best, &choice{impl: impl, resolved: res})
		}
	}

	switch len(best) {
	case 0:
		r.f.errorf(ErrTypeMismatch, fn.path, "",
			"no overload of '%s' accepts (%s); candidates:\n    %s",
			fn.def.Identifier, typeList(actual), strings.Join(rejected, "\n    "))
		return nil
	case 1:
		return best[0]
	}

	sigs := make([]string, len(best))
	for i, c := range best {
		sigs[i] = c.impl.Signature.String()
	}
	r.f.errorf(ErrAmbiguous, fn.path, "",
		"'%s' with inputs (%s) matches %s equally well",
		fn.def.Identifier, typeList(actual), strings.Join(sigs, " and "))
	return nil
}

func typeList(ts []cty.Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = types.TypeString(t)
	}
	return strings.Join(parts, ", ")
}

// emit builds the proto network from the kept nodes.
func (r *resolver) emit(keep, outputs []int) (*proto.Network, error) {
	pos := make(map[int]int, len(keep))
	nodes := make([]*proto.Node, 0, len(keep))
	for _, i := range keep {
		fn := r.f.nodes[i]
		c, ok := r.chosen[i]
		if !ok {
			return nil, fmt.Errorf("node %s was kept but not resolved", fn.path)
		}
		inputs := make([]proto.Input, len(fn.inputs))
		for slot, in := range fn.inputs {
			switch in.kind {
			case refConst:
				inputs[slot] = proto.ConstInput(in.value)
			case refExternal:
				inputs[slot] = proto.ExternalInput(in.ext)
			case refNode:
				p, ok := pos[in.node]
				if !ok {
					return nil, fmt.Errorf("node %s depends on %s, which was not emitted before it", fn.path, r.f.nodes[in.node].path)
				}
				inputs[slot] = proto.NodeInput(p)
			}
		}
		pos[i] = len(nodes)
		nodes = append(nodes, &proto.Node{
			Path:       fn.path,
			Identifier: c.impl.Identifier,
			Impl:       c.impl,
			ImplKey:    c.impl.Key(),
			Inputs:     inputs,
			InputTypes: c.resolved.Inputs,
			OutputType: c.resolved.Output,
		})
	}

	outs := make([]int, len(outputs))
	for i, o := range outputs {
		outs[i] = pos[o]
	}
	return proto.New(r.params, nodes, outs)
}
