package docjson

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/graphcraft/internal/graph"
	"github.com/specialistvlad/graphcraft/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	b := registry.NewBuilder(nil)
	num := func(ctx context.Context, args []cty.Value, out cty.Type) (cty.Value, error) { return args[0], nil }
	require.NoError(t, b.Register("math.const", "(number) -> number", registry.Raw(num)))
	require.NoError(t, b.Register("math.add", "(number, number) -> number", registry.Raw(num)))
	require.NoError(t, b.Register(PassthroughID, "(T) -> T", registry.Raw(num)))
	require.NoError(t, b.Register(ErrorStubID, "(string) -> any", registry.Raw(num)))
	reg, err := b.Build()
	require.NoError(t, err)
	return reg
}

func nestedDocument(t *testing.T) *graph.Document {
	t.Helper()
	doc := graph.NewDocument("main")

	scale := graph.NewNetwork("scale", graph.InputDecl{Name: "x", Type: cty.Number})
	require.NoError(t, scale.AddNode(&graph.DocumentNode{
		ID: "twice", Implementation: graph.Op("math.add"),
		Inputs: []graph.NodeInput{graph.NetworkInput(0), graph.NetworkInput(0)},
	}))
	scale.Export("twice", 0)
	require.NoError(t, doc.AddNetwork(scale))

	main := graph.NewNetwork("main")
	require.NoError(t, main.AddNode(&graph.DocumentNode{
		ID: "A", Implementation: graph.Op("math.const"),
		Inputs:   []graph.NodeInput{graph.Value(cty.NumberFloatVal(2.5))},
		Metadata: map[string]string{"label": "two and a half"},
	}))
	require.NoError(t, main.AddNode(&graph.DocumentNode{
		ID: "S", Implementation: graph.Net("scale"),
		Inputs: []graph.NodeInput{graph.Ref("A")},
	}))
	require.NoError(t, main.AddNode(&graph.DocumentNode{
		ID: "L", Implementation: graph.Op("math.const"),
		Inputs: []graph.NodeInput{graph.Value(cty.ListVal([]cty.Value{cty.StringVal("a")}))},
	}))
	main.Export("S", 0)
	require.NoError(t, doc.AddNetwork(main))
	return doc
}

func TestRoundTrip(t *testing.T) {
	doc := nestedDocument(t)
	first, err := Marshal(doc)
	require.NoError(t, err)

	loaded, issues, err := Unmarshal(first, testRegistry(t))
	require.NoError(t, err)
	assert.Empty(t, issues)
	require.NoError(t, loaded.Validate())

	second, err := Marshal(loaded)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))

	a := loaded.Networks["main"].Nodes["A"]
	assert.True(t, a.Inputs[0].Value.Equals(cty.NumberFloatVal(2.5)).True())
	assert.Equal(t, "two and a half", a.Metadata["label"])
	l := loaded.Networks["main"].Nodes["L"]
	assert.True(t, l.Inputs[0].Value.Type().Equals(cty.List(cty.String)))
	assert.Equal(t, graph.NetworkInput(0), loaded.Networks["scale"].Nodes["twice"].Inputs[1])
	assert.Equal(t, []graph.InputDecl{{Name: "x", Type: cty.Number}}, loaded.Networks["scale"].Inputs)
}

func TestUnmarshal_UnknownIdentifiers(t *testing.T) {
	doc := nestedDocument(t)
	main := doc.Networks["main"]
	require.NoError(t, main.AddNode(&graph.DocumentNode{
		ID: "U", Implementation: graph.Op("math.ad"),
		Inputs: []graph.NodeInput{graph.Ref("A"), graph.Ref("A")},
	}))
	require.NoError(t, main.AddNode(&graph.DocumentNode{ID: "V", Implementation: graph.Op("vendor.noise")}))

	data, err := Marshal(doc)
	require.NoError(t, err)

	loaded, issues, err := Unmarshal(data, testRegistry(t))
	require.NoError(t, err, "unknown identifiers must not abort loading")
	require.Len(t, issues, 2)

	assert.Equal(t, graph.NodeID("U"), issues[0].Node)
	assert.Equal(t, PassthroughID, issues[0].Stub)
	assert.Contains(t, issues[0].Suggestions, "math.add")
	assert.Contains(t, issues[0].Error(), "did you mean math.add")
	assert.Equal(t, ErrorStubID, issues[1].Stub)

	u := loaded.Networks["main"].Nodes["U"]
	assert.Equal(t, PassthroughID, u.Implementation.Identifier)
	assert.Equal(t, "math.ad", u.Metadata[UnresolvedKey])

	again, err := Marshal(loaded)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again), "stubs must write the original identifier back")

	noReg, issues, err := Unmarshal(data, nil)
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, "math.ad", noReg.Networks["main"].Nodes["U"].Implementation.Identifier)
}

func TestUnmarshal_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		data    string
		wantErr string
	}{
		{name: "bad json", data: `{`, wantErr: "failed to decode document"},
		{name: "future version", data: `{"version": 9, "main": "m", "networks": {}}`, wantErr: "unsupported document version: 9"},
		{name: "unknown field", data: `{"version": 1, "main": "m", "networks": {}, "extra": 1}`, wantErr: "unknown field"},
		{
			name:    "ambiguous input",
			data:    `{"version":1,"main":"m","networks":{"m":{"nodes":[{"id":"a","op":"x","inputs":[{"node":"b","network_input":0}]}],"exports":[]}}}`,
			wantErr: "exactly one of value, node or network_input",
		},
		{
			name:    "duplicate node",
			data:    `{"version":1,"main":"m","networks":{"m":{"nodes":[{"id":"a","op":"x"},{"id":"a","op":"x"}],"exports":[]}}}`,
			wantErr: "already exists",
		},
		{
			name:    "bad value type",
			data:    `{"version":1,"main":"m","networks":{"m":{"nodes":[{"id":"a","op":"x","inputs":[{"value":{"type":"number","value":"abc"}}]}],"exports":[]}}}`,
			wantErr: "input 0",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Unmarshal([]byte(tc.data), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, Save(path, nestedDocument(t)))
	doc, issues, err := Load(path, nil)
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Len(t, doc.Networks, 2)

	_, _, err = Load(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)
}
