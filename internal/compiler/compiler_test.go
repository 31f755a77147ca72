package compiler

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/specialistvlad/graphcraft/internal/docjson"
	"github.com/specialistvlad/graphcraft/internal/graph"
	"github.com/specialistvlad/graphcraft/internal/proto"
	"github.com/specialistvlad/graphcraft/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func identity(_ context.Context, args []cty.Value, _ cty.Type) (cty.Value, error) {
	return args[0], nil
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	b := registry.NewBuilder(nil)
	must := func(err error) { require.NoError(t, err) }

	must(b.Register("math.const", "(number) -> number", registry.Pure1(func(v float64) float64 { return v })))
	must(b.Register("math.add", "(number, number) -> number", registry.Pure2(func(a, b float64) float64 { return a + b })))
	must(b.Register("math.add", "(string, string) -> string", registry.Pure2(func(a, b string) string { return a + b })))
	must(b.Register("math.add", "(list(number), list(number)) -> list(number)", registry.Pure2(func(a, b []float64) []float64 { return a })))
	must(b.Register("math.mul", "(number, number) -> number", registry.Pure2(func(a, b float64) float64 { return a * b })))
	must(b.Register("core.identity", "(T) -> T", registry.Raw(identity)))
	must(b.Register("core.passthrough", "(T) -> T", registry.Raw(identity)))
	must(b.Register("core.error", "(string) -> any", registry.Raw(identity)))
	must(b.Register("test.pick", "(T, number) -> T", registry.Raw(identity)))
	must(b.Register("test.pick", "(number, T) -> T", registry.Raw(identity)))
	must(b.Register("test.first", "(T, any) -> T", registry.Raw(identity)))
	must(b.Register("test.first", "(number, any) -> number", registry.Raw(identity)))

	reg, err := b.Build()
	require.NoError(t, err)
	return reg
}

func op(id graph.NodeID, identifier string, inputs ...graph.NodeInput) *graph.DocumentNode {
	return &graph.DocumentNode{ID: id, Implementation: graph.Op(identifier), Inputs: inputs}
}

func call(id graph.NodeID, network string, inputs ...graph.NodeInput) *graph.DocumentNode {
	return &graph.DocumentNode{ID: id, Implementation: graph.Net(network), Inputs: inputs}
}

func num(v int64) graph.NodeInput { return graph.Value(cty.NumberIntVal(v)) }

func network(t *testing.T, name string, inputs []graph.InputDecl, nodes ...*graph.DocumentNode) *graph.NodeNetwork {
	t.Helper()
	n := graph.NewNetwork(name, inputs...)
	for _, node := range nodes {
		require.NoError(t, n.AddNode(node))
	}
	return n
}

func document(t *testing.T, networks ...*graph.NodeNetwork) *graph.Document {
	t.Helper()
	doc := graph.NewDocument(networks[0].Name)
	for _, n := range networks {
		require.NoError(t, doc.AddNetwork(n))
	}
	return doc
}

// addDocument is const(5) + const(3).
func addDocument(t *testing.T) *graph.Document {
	main := network(t, "main", nil,
		op("A", "math.const", num(5)),
		op("B", "math.const", num(3)),
		op("C", "math.add", graph.Ref("A"), graph.Ref("B")),
	)
	main.Export("C", 0)
	return document(t, main)
}

func compile(t *testing.T, doc *graph.Document, opts ...Option) (*proto.Network, Diagnostics, error) {
	t.Helper()
	return New(newTestRegistry(t)).Compile(context.Background(), doc, opts...)
}

func requireKind(t *testing.T, diags Diagnostics, err error, kind error) *Diagnostic {
	t.Helper()
	require.Error(t, err)
	var compErr *Error
	require.ErrorAs(t, err, &compErr)
	require.ErrorIs(t, err, kind)
	for _, d := range diags.Errors() {
		if errors.Is(d, kind) {
			return d
		}
	}
	t.Fatalf("no diagnostic of kind %v in %v", kind, diags)
	return nil
}

var protoCmp = []cmp.Option{
	cmp.Comparer(func(a, b cty.Type) bool { return a.Equals(b) }),
	cmp.Comparer(func(a, b cty.Value) bool { return a.RawEquals(b) }),
	cmpopts.IgnoreFields(proto.Node{}, "Impl"),
}

func TestCompile_ConstAdd(t *testing.T) {
	net, diags, err := compile(t, addDocument(t))
	require.NoError(t, err)
	assert.Empty(t, diags)

	require.Len(t, net.Nodes, 3)
	assert.Equal(t, []string{"main.A", "main.B", "main.C"}, paths(net))
	assert.Equal(t, []int{2}, net.Outputs)

	c := net.Nodes[2]
	assert.Equal(t, "math.add", c.Identifier)
	assert.Equal(t, "math.add (number, number) -> number", c.ImplKey)
	assert.Equal(t, []proto.Input{proto.NodeInput(0), proto.NodeInput(1)}, c.Inputs)
	assert.Equal(t, cty.Number, c.OutputType)
	require.NoError(t, net.Validate())
}

func TestCompile_Deterministic(t *testing.T) {
	build := func() *graph.Document {
		scale := network(t, "scale", []graph.InputDecl{{Name: "v"}},
			op("twice", "math.add", graph.NetworkInput(0), graph.NetworkInput(0)),
			op("k", "math.const", num(10)),
			op("scaled", "math.mul", graph.Ref("twice"), graph.Ref("k")),
		)
		scale.Export("scaled", 0)
		scale.Export("twice", 0)
		main := network(t, "main", []graph.InputDecl{{Name: "x", Type: cty.Number}},
			op("z", "math.const", num(1)),
			op("y", "math.add", graph.NetworkInput(0), graph.Ref("z")),
			call("s", "scale", graph.Ref("y")),
			op("out", "math.add", graph.RefOutput("s", 0), graph.RefOutput("s", 1)),
		)
		main.Export("out", 0)
		return document(t, main, scale)
	}

	first, _, err := compile(t, build())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, _, err := compile(t, build())
		require.NoError(t, err)
		if diff := cmp.Diff(first, again, protoCmp...); diff != "" {
			t.Fatalf("compilation is not deterministic (-first +again):\n%s", diff)
		}
	}
	assert.Equal(t, []string{"main.s.k", "main.z", "main.y", "main.s.twice", "main.s.scaled", "main.out"}, paths(first))
}

func TestCompile_Inline(t *testing.T) {
	inner := network(t, "inner", []graph.InputDecl{{Name: "a"}, {Name: "b"}},
		op("sum", "math.add", graph.NetworkInput(1), graph.NetworkInput(0)),
	)
	inner.Export("sum", 0)
	outer := network(t, "outer", []graph.InputDecl{{Name: "p"}},
		call("i", "inner", graph.NetworkInput(0), num(2)),
	)
	outer.Export("i", 0)
	main := network(t, "main", []graph.InputDecl{{Name: "x", Type: cty.Number}},
		call("o", "outer", graph.NetworkInput(0)),
	)
	main.Export("o", 0)

	net, diags, err := compile(t, document(t, main, outer, inner))
	require.NoError(t, err)
	assert.Empty(t, diags.Errors())

	require.Len(t, net.Nodes, 1)
	sum := net.Nodes[0]
	assert.Equal(t, "main.o.i.sum", sum.Path)
	assert.Equal(t, []proto.Input{proto.ConstInput(cty.NumberIntVal(2)), proto.ExternalInput(0)}, sum.Inputs)
	assert.Equal(t, []proto.Param{{Name: "x", Type: cty.Number}}, net.Inputs)
}

func TestCompile_Recursion(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		main := network(t, "main", nil, call("self", "main"))
		main.Export("self", 0)
		_, diags, err := compile(t, document(t, main))
		d := requireKind(t, diags, err, ErrRecursiveNetwork)
		assert.Equal(t, "main.self", d.Path)
	})

	t.Run("transitive", func(t *testing.T) {
		main := network(t, "main", nil, call("a", "a"))
		main.Export("a", 0)
		a := network(t, "a", nil, call("b", "b"))
		a.Export("b", 0)
		b := network(t, "b", nil, call("a", "a"))
		b.Export("a", 0)
		_, diags, err := compile(t, document(t, main, a, b))
		d := requireKind(t, diags, err, ErrRecursiveNetwork)
		assert.Contains(t, d.Detail, "main -> a -> b -> a")
	})

	t.Run("same network twice is fine", func(t *testing.T) {
		leaf := network(t, "leaf", nil, op("k", "math.const", num(1)))
		leaf.Export("k", 0)
		main := network(t, "main", nil,
			call("l1", "leaf"),
			call("l2", "leaf"),
			op("sum", "math.add", graph.Ref("l1"), graph.Ref("l2")),
		)
		main.Export("sum", 0)
		net, _, err := compile(t, document(t, main, leaf))
		require.NoError(t, err)
		assert.Equal(t, []string{"main.l1.k", "main.l2.k", "main.sum"}, paths(net))
		assert.Equal(t, net.Nodes[0].Hash, net.Nodes[1].Hash)
	})
}

func TestCompile_Errors(t *testing.T) {
	t.Run("arity mismatch", func(t *testing.T) {
		leaf := network(t, "leaf", []graph.InputDecl{{Name: "a"}}, op("id", "core.identity", graph.NetworkInput(0)))
		leaf.Export("id", 0)
		main := network(t, "main", nil, call("l", "leaf"))
		main.Export("l", 0)
		_, diags, err := compile(t, document(t, main, leaf))
		d := requireKind(t, diags, err, ErrArity)
		assert.Equal(t, "main.l", d.Path)
	})

	t.Run("unknown node suggests", func(t *testing.T) {
		main := network(t, "main", nil, op("a", "math.ad", num(1), num(2)))
		main.Export("a", 0)
		_, diags, err := compile(t, document(t, main))
		d := requireKind(t, diags, err, ErrUnknownNode)
		assert.Contains(t, d.Suggestions, "math.add")
		assert.Contains(t, err.Error(), "did you mean")
	})

	t.Run("unknown network", func(t *testing.T) {
		main := network(t, "main", nil, call("a", "nowhere"))
		main.Export("a", 0)
		_, diags, err := compile(t, document(t, main))
		requireKind(t, diags, err, ErrUnknownNetwork)
	})

	t.Run("dangling export", func(t *testing.T) {
		main := network(t, "main", nil, op("a", "math.const", num(1)))
		main.Export("ghost", 0)
		net, diags, err := compile(t, document(t, main))
		assert.Nil(t, net)
		d := requireKind(t, diags, err, ErrDanglingReference)
		assert.Equal(t, "main", d.Network)
		assert.Contains(t, d.Detail, "ghost")
	})

	t.Run("dangling node reference", func(t *testing.T) {
		main := network(t, "main", nil, op("a", "core.identity", graph.Ref("ghost")))
		main.Export("a", 0)
		_, diags, err := compile(t, document(t, main))
		d := requireKind(t, diags, err, ErrDanglingReference)
		assert.Equal(t, "main.a", d.Path)
	})

	t.Run("missing main", func(t *testing.T) {
		doc := addDocument(t)
		doc.Main = "other"
		_, diags, err := compile(t, doc)
		requireKind(t, diags, err, ErrNoMain)
	})

	t.Run("errors are collected", func(t *testing.T) {
		main := network(t, "main", nil,
			op("a", "nope.one"),
			op("b", "nope.two"),
		)
		main.Export("a", 0)
		main.Export("b", 0)
		_, diags, err := compile(t, document(t, main))
		require.Error(t, err)
		assert.Len(t, diags.Errors(), 2)
		assert.Contains(t, err.Error(), "2 errors")
	})
}

func TestCompile_Cycles(t *testing.T) {
	t.Run("within a network", func(t *testing.T) {
		main := network(t, "main", nil,
			op("a", "math.add", graph.Ref("c"), num(1)),
			op("b", "math.add", graph.Ref("a"), num(1)),
			op("c", "math.add", graph.Ref("b"), num(1)),
		)
		main.Export("c", 0)
		_, diags, err := compile(t, document(t, main))
		d := requireKind(t, diags, err, ErrCycle)
		assert.Contains(t, d.Detail, "main.a")
	})

	t.Run("in an unreachable part", func(t *testing.T) {
		main := network(t, "main", nil,
			op("k", "math.const", num(1)),
			op("a", "core.identity", graph.Ref("b")),
			op("b", "core.identity", graph.Ref("a")),
		)
		main.Export("k", 0)
		_, diags, err := compile(t, document(t, main))
		requireKind(t, diags, err, ErrCycle)
	})

	t.Run("through a network boundary", func(t *testing.T) {
		pass := network(t, "pass", []graph.InputDecl{{Name: "v"}}, op("id", "core.identity", graph.NetworkInput(0)))
		pass.Export("id", 0)
		main := network(t, "main", nil,
			call("p", "pass", graph.Ref("q")),
			op("q", "core.identity", graph.Ref("p")),
		)
		main.Export("q", 0)
		_, diags, err := compile(t, document(t, main, pass))
		requireKind(t, diags, err, ErrCycle)
	})

	t.Run("self loop via passthrough export", func(t *testing.T) {
		wire := network(t, "wire", []graph.InputDecl{{Name: "v"}}, op("unused", "math.const", num(0)))
		wire.Export("unused", 0)
		main := network(t, "main", nil, call("w", "wire", graph.Ref("w")))
		main.Export("w", 0)
		net, _, err := compile(t, document(t, main, wire))
		require.NoError(t, err, "the export does not depend on the input")
		assert.Len(t, net.Nodes, 1)
	})
}

func TestCompile_Prune(t *testing.T) {
	main := network(t, "main", []graph.InputDecl{{Name: "x", Type: cty.Number}, {Name: "unused", Type: cty.String}},
		op("a", "math.const", num(1)),
		op("dead", "math.add", graph.NetworkInput(0), num(1)),
	)
	main.Export("a", 0)

	net, diags, err := compile(t, document(t, main))
	require.NoError(t, err)
	assert.Equal(t, []string{"main.a"}, paths(net))

	var eliminated, unused []string
	for _, d := range diags.Warnings() {
		switch {
		case errors.Is(d, WarnEliminated):
			eliminated = append(eliminated, d.Path)
		case errors.Is(d, WarnUnusedInput):
			unused = append(unused, d.Detail)
		}
	}
	assert.Equal(t, []string{"main.dead"}, eliminated)
	assert.Equal(t, []string{"input 'x' is never used", "input 'unused' is never used"}, unused)
}

func TestCompile_WithOutputs(t *testing.T) {
	build := func() *graph.Document {
		scale := network(t, "scale", []graph.InputDecl{{Name: "v"}},
			op("twice", "math.mul", graph.NetworkInput(0), num(2)),
			op("scaled", "math.add", graph.Ref("twice"), graph.NetworkInput(0)),
		)
		scale.Export("scaled", 0)
		scale.Export("twice", 0)
		main := network(t, "main", []graph.InputDecl{{Name: "x", Type: cty.Number}},
			call("s", "scale", graph.NetworkInput(0)),
			op("out", "math.add", graph.RefOutput("s", 0), graph.RefOutput("s", 1)),
		)
		main.Export("out", 0)
		return document(t, main, scale)
	}

	t.Run("nested node", func(t *testing.T) {
		net, _, err := compile(t, build(), WithOutputs("main.s.twice"))
		require.NoError(t, err)
		assert.Equal(t, []string{"main.s.twice"}, paths(net))
		assert.Equal(t, []int{0}, net.Outputs)
	})

	t.Run("network node output", func(t *testing.T) {
		net, _, err := compile(t, build(), WithOutputs("main.s[1]", "main.s"))
		require.NoError(t, err)
		assert.Equal(t, []string{"main.s.twice", "main.s.scaled"}, paths(net))
		assert.Equal(t, []int{0, 1}, net.Outputs)
	})

	testCases := []struct {
		path string
		want string
	}{
		{"main.s.nope", "does not exist"},
		{"other.out", "must start with the main network"},
		{"main", "names a network"},
		{"main.out.twice", "is not a network node"},
		{"main.out[1]", "single output"},
		{"main..out", "bad segment"},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			_, diags, err := compile(t, build(), WithOutputs(tc.path))
			d := requireKind(t, diags, err, ErrExport)
			assert.Contains(t, d.Error(), tc.want)
		})
	}
}

func TestCompile_Overloads(t *testing.T) {
	testCases := []struct {
		name    string
		inputs  []graph.NodeInput
		node    string
		wantKey string
		wantOut cty.Type
		wantErr error
	}{
		{name: "numbers", node: "math.add", inputs: []graph.NodeInput{num(1), num(2)}, wantKey: "math.add (number, number) -> number", wantOut: cty.Number},
		{name: "strings", node: "math.add", inputs: []graph.NodeInput{graph.Value(cty.StringVal("a")), graph.Value(cty.StringVal("b"))}, wantKey: "math.add (string, string) -> string", wantOut: cty.String},
		{
			name: "lists", node: "math.add",
			inputs:  []graph.NodeInput{graph.Value(cty.ListVal([]cty.Value{cty.NumberIntVal(1)})), graph.Value(cty.ListVal([]cty.Value{cty.NumberIntVal(2)}))},
			wantKey: "math.add (list(number), list(number)) -> list(number)", wantOut: cty.List(cty.Number),
		},
		{name: "mixed is a mismatch", node: "math.add", inputs: []graph.NodeInput{num(1), graph.Value(cty.StringVal("b"))}, wantErr: ErrTypeMismatch},
		{name: "wrong arity is a mismatch", node: "math.add", inputs: []graph.NodeInput{num(1)}, wantErr: ErrTypeMismatch},
		{name: "equal specificity is ambiguous", node: "test.pick", inputs: []graph.NodeInput{num(1), num(2)}, wantErr: ErrAmbiguous},
		{name: "one candidate left", node: "test.pick", inputs: []graph.NodeInput{graph.Value(cty.StringVal("s")), num(2)}, wantKey: "test.pick (T, number) -> T", wantOut: cty.String},
		{name: "most specific wins", node: "test.first", inputs: []graph.NodeInput{num(1), num(2)}, wantKey: "test.first (number, any) -> number", wantOut: cty.Number},
		{name: "generic fallback", node: "test.first", inputs: []graph.NodeInput{graph.Value(cty.True), num(2)}, wantKey: "test.first (T, any) -> T", wantOut: cty.Bool},
		{name: "generic identity", node: "core.identity", inputs: []graph.NodeInput{graph.Value(cty.MapValEmpty(cty.String))}, wantKey: "core.identity (T) -> T", wantOut: cty.Map(cty.String)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			main := network(t, "main", nil, op("n", tc.node, tc.inputs...))
			main.Export("n", 0)
			net, diags, err := compile(t, document(t, main))
			if tc.wantErr != nil {
				d := requireKind(t, diags, err, tc.wantErr)
				assert.Equal(t, "main.n", d.Path)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantKey, net.Nodes[0].ImplKey)
			assert.True(t, tc.wantOut.Equals(net.Nodes[0].OutputType), "got %s", net.Nodes[0].OutputType.FriendlyName())
		})
	}
}

func TestCompile_TypePropagation(t *testing.T) {
	main := network(t, "main", nil,
		op("s", "core.identity", graph.Value(cty.StringVal("x"))),
		op("bad", "math.mul", graph.Ref("s"), num(2)),
		op("after", "core.identity", graph.Ref("bad")),
	)
	main.Export("after", 0)
	_, diags, err := compile(t, document(t, main))
	requireKind(t, diags, err, ErrTypeMismatch)
	assert.Len(t, diags.Errors(), 1, "dependents of a failed node are not reported again")
}

func TestCompile_InputTypes(t *testing.T) {
	main := network(t, "main", []graph.InputDecl{{Name: "x"}},
		op("id", "core.identity", graph.NetworkInput(0)),
	)
	main.Export("id", 0)

	_, diags, err := compile(t, document(t, main))
	requireKind(t, diags, err, ErrUntypedInput)

	net, _, err := compile(t, document(t, main), WithInputTypes(cty.String))
	require.NoError(t, err)
	assert.Equal(t, cty.String, net.Nodes[0].OutputType)
	assert.Equal(t, cty.String, net.Inputs[0].Type)

	_, diags, err = compile(t, document(t, main), WithInputTypes(cty.String, cty.Number))
	requireKind(t, diags, err, ErrArity)
}

func TestCompile_Stubs(t *testing.T) {
	data := []byte(`{
  "version": 1,
  "main": "main",
  "networks": {
    "main": {
      "nodes": [
        {"id": "k", "op": "math.const", "inputs": [{"value": {"type": "number", "value": 2}}]},
        {"id": "lost", "op": "vendor.blur", "inputs": [{"node": "k"}, {"value": {"type": "number", "value": 3}}]},
        {"id": "gone", "op": "vendor.noise"}
      ],
      "exports": [{"node": "lost"}, {"node": "gone"}]
    }
  }
}`)
	reg := newTestRegistry(t)
	doc, issues, err := docjson.Unmarshal(data, reg)
	require.NoError(t, err)
	require.Len(t, issues, 2)

	net, diags, err := New(reg).Compile(context.Background(), doc)
	require.NoError(t, err)
	assert.Len(t, diags.Warnings(), 2)
	for _, d := range diags.Warnings() {
		assert.ErrorIs(t, d, WarnStub)
	}

	byPath := make(map[string]*proto.Node)
	for _, n := range net.Nodes {
		byPath[n.Path] = n
	}
	lost := byPath["main.lost"]
	require.NotNil(t, lost)
	assert.Equal(t, "core.passthrough", lost.Identifier)
	assert.Len(t, lost.Inputs, 1)

	gone := byPath["main.gone"]
	require.NotNil(t, gone)
	assert.Equal(t, "core.error", gone.Identifier)
	assert.True(t, gone.Inputs[0].Value.RawEquals(cty.StringVal("unknown node 'vendor.noise'")))
}

func TestCompile_RoundTrip(t *testing.T) {
	doc := addDocument(t)
	reg := newTestRegistry(t)

	data, err := docjson.Marshal(doc)
	require.NoError(t, err)
	loaded, issues, err := docjson.Unmarshal(data, reg)
	require.NoError(t, err)
	require.Empty(t, issues)

	c := New(reg)
	want, _, err := c.Compile(context.Background(), doc)
	require.NoError(t, err)
	got, _, err := c.Compile(context.Background(), loaded)
	require.NoError(t, err)

	assert.Equal(t, want.Hash, got.Hash)
	if diff := cmp.Diff(want, got, protoCmp...); diff != "" {
		t.Fatalf("round trip changed the compiled network (-want +got):\n%s", diff)
	}
}

func paths(n *proto.Network) []string {
	out := make([]string, len(n.Nodes))
	for i, node := range n.Nodes {
		out[i] = node.Path
	}
	return out
}
