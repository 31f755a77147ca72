package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/specialistvlad/graphcraft/internal/compiler"
	"github.com/specialistvlad/graphcraft/internal/graph"
	"github.com/specialistvlad/graphcraft/internal/memo"
	"github.com/specialistvlad/graphcraft/internal/proto"
	"github.com/specialistvlad/graphcraft/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/multierr"
)

// fixture is a registry whose implementations count their calls.
type fixture struct {
	reg   *registry.Registry
	calls sync.Map // identifier -> *int64
	delay time.Duration
}

func (f *fixture) count(id string) {
	c, _ := f.calls.LoadOrStore(id, new(int64))
	atomic.AddInt64(c.(*int64), 1)
}

func (f *fixture) callsOf(id string) int64 {
	c, ok := f.calls.Load(id)
	if !ok {
		return 0
	}
	return atomic.LoadInt64(c.(*int64))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}
	b := registry.NewBuilder(nil)
	must := func(err error) { require.NoError(t, err) }

	must(b.Register("math.const", "(number) -> number", registry.Pure1(func(v float64) float64 {
		f.count("math.const")
		return v
	})))
	must(b.Register("math.add", "(number, number) -> number", registry.Func2(func(ctx context.Context, a, b float64) (float64, error) {
		f.count("math.add")
		if f.delay > 0 {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
		return a + b, nil
	})))
	must(b.Register("math.div", "(number, number) -> number", registry.Func2(func(_ context.Context, a, b float64) (float64, error) {
		f.count("math.div")
		if b == 0 {
			return 0, errors.New("division by zero")
		}
		return a / b, nil
	})))
	must(b.Register("test.tick", "(number) -> number", registry.Pure1(func(v float64) float64 {
		f.count("test.tick")
		return v
	}), registry.Impure()))
	must(b.Register("test.liar", "(number) -> number", registry.Raw(func(context.Context, []cty.Value, cty.Type) (cty.Value, error) {
		return cty.StringVal("not a number"), nil
	})))
	must(b.Register("test.panic", "(number) -> number", registry.Raw(func(context.Context, []cty.Value, cty.Type) (cty.Value, error) {
		panic("boom")
	})))

	reg, err := b.Build()
	require.NoError(t, err)
	f.reg = reg
	return f
}

func op(id graph.NodeID, identifier string, inputs ...graph.NodeInput) *graph.DocumentNode {
	return &graph.DocumentNode{ID: id, Implementation: graph.Op(identifier), Inputs: inputs}
}

func num(v int64) graph.NodeInput { return graph.Value(cty.NumberIntVal(v)) }

func (f *fixture) compile(t *testing.T, inputs []graph.InputDecl, exports []graph.NodeID, nodes ...*graph.DocumentNode) *proto.Network {
	t.Helper()
	main := graph.NewNetwork("main", inputs...)
	for _, n := range nodes {
		require.NoError(t, main.AddNode(n))
	}
	for _, e := range exports {
		main.Export(e, 0)
	}
	doc := graph.NewDocument("main")
	require.NoError(t, doc.AddNetwork(main))
	net, _, err := compiler.New(f.reg).Compile(context.Background(), doc)
	require.NoError(t, err)
	return net
}

func (f *fixture) addNetwork(t *testing.T) *proto.Network {
	return f.compile(t, nil, []graph.NodeID{"C"},
		op("A", "math.const", num(5)),
		op("B", "math.const", num(3)),
		op("C", "math.add", graph.Ref("A"), graph.Ref("B")),
	)
}

func requireNumber(t *testing.T, want int64, got cty.Value) {
	t.Helper()
	require.Equal(t, cty.Number, got.Type())
	assert.True(t, got.Equals(cty.NumberIntVal(want)).True(), "want %d, got %s", want, got.GoString())
}

func TestExecute_ConstAdd(t *testing.T) {
	f := newFixture(t)
	net := f.addNetwork(t)
	require.Len(t, net.Nodes, 3)

	out, err := New().Execute(context.Background(), net, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	requireNumber(t, 8, out[0])
}

func TestExecute_CacheTransparency(t *testing.T) {
	f := newFixture(t)
	net := f.compile(t, []graph.InputDecl{{Name: "x", Type: cty.Number}}, []graph.NodeID{"sum"},
		op("k", "math.const", num(2)),
		op("sum", "math.add", graph.Ref("k"), graph.NetworkInput(0)),
	)
	in := []cty.Value{cty.NumberIntVal(40)}

	uncached, err := New().Execute(context.Background(), net, in)
	require.NoError(t, err)

	cache := memo.New(0)
	exec := New(WithCache(cache))
	cold, err := exec.Execute(context.Background(), net, in)
	require.NoError(t, err)
	callsAfterCold := f.callsOf("math.add")

	warm, err := exec.Execute(context.Background(), net, in)
	require.NoError(t, err)

	requireNumber(t, 42, uncached[0])
	assert.True(t, cold[0].RawEquals(uncached[0]))
	assert.True(t, warm[0].RawEquals(uncached[0]))
	assert.Equal(t, callsAfterCold, f.callsOf("math.add"), "a warm cache skips the computation")
	assert.Equal(t, int64(2), cache.Stats().Hits)

	// A different external input is a different key.
	other, err := exec.Execute(context.Background(), net, []cty.Value{cty.NumberIntVal(1)})
	require.NoError(t, err)
	requireNumber(t, 3, other[0])
	assert.Equal(t, callsAfterCold+1, f.callsOf("math.add"))
}

func TestExecute_SharedStructureSharesCache(t *testing.T) {
	f := newFixture(t)
	cache := memo.New(0)
	exec := New(WithCache(cache))

	_, err := exec.Execute(context.Background(), f.addNetwork(t), nil)
	require.NoError(t, err)
	before := f.callsOf("math.add")

	// The same structure under different node ids hits the same entries.
	renamed := f.compile(t, nil, []graph.NodeID{"z"},
		op("x", "math.const", num(5)),
		op("y", "math.const", num(3)),
		op("z", "math.add", graph.Ref("x"), graph.Ref("y")),
	)
	out, err := exec.Execute(context.Background(), renamed, nil)
	require.NoError(t, err)
	requireNumber(t, 8, out[0])
	assert.Equal(t, before, f.callsOf("math.add"))
}

func TestExecute_ImpureNodesAreNotCached(t *testing.T) {
	f := newFixture(t)
	net := f.compile(t, nil, []graph.NodeID{"sum"},
		op("t", "test.tick", num(1)),
		op("sum", "math.add", graph.Ref("t"), num(1)),
	)
	exec := New(WithCache(memo.New(0)))
	for i := 0; i < 3; i++ {
		out, err := exec.Execute(context.Background(), net, nil)
		require.NoError(t, err)
		requireNumber(t, 2, out[0])
	}
	assert.Equal(t, int64(3), f.callsOf("test.tick"))
	assert.Equal(t, int64(3), f.callsOf("math.add"), "nodes downstream of an impure node are not cached")
}

func TestExecute_NodeFailure(t *testing.T) {
	for _, workers := range []int{1, 4} {
		f := newFixture(t)
		net := f.compile(t, nil, []graph.NodeID{"after", "ok"},
			op("bad", "math.div", num(1), num(0)),
			op("after", "math.add", graph.Ref("bad"), num(1)),
			op("ok", "math.add", num(2), num(2)),
		)
		cache := memo.New(0)

		_, err := New(WithCache(cache), WithWorkers(workers)).Execute(context.Background(), net, nil)
		require.Error(t, err)

		var nodeErr *NodeError
		require.ErrorAs(t, err, &nodeErr)
		assert.Equal(t, "main.bad", nodeErr.Path)
		assert.Equal(t, "math.div", nodeErr.Identifier)
		assert.ErrorContains(t, err, "division by zero")
		assert.Len(t, multierr.Errors(err), 1, "skipped dependents are logged, not reported as failures")

		assert.Equal(t, int64(1), f.callsOf("math.add"), "only the independent node ran (workers=%d)", workers)
		assert.Equal(t, 1, cache.Len(), "the failure is not cached, the sibling is")
	}
}

func TestExecute_Inputs(t *testing.T) {
	f := newFixture(t)
	net := f.compile(t, []graph.InputDecl{{Name: "x", Type: cty.Number}}, []graph.NodeID{"sum"},
		op("sum", "math.add", graph.NetworkInput(0), num(1)),
	)

	_, err := New().Execute(context.Background(), net, nil)
	assert.ErrorIs(t, err, ErrInputArity)

	_, err = New().Execute(context.Background(), net, []cty.Value{cty.StringVal("1")})
	assert.ErrorIs(t, err, ErrInputType)
}

func TestExecute_InternalErrors(t *testing.T) {
	f := newFixture(t)

	t.Run("result of the wrong type", func(t *testing.T) {
		net := f.compile(t, nil, []graph.NodeID{"l"}, op("l", "test.liar", num(1)))
		_, err := New().Execute(context.Background(), net, nil)
		assert.ErrorIs(t, err, ErrInternal)
	})

	t.Run("panic", func(t *testing.T) {
		net := f.compile(t, nil, []graph.NodeID{"p"}, op("p", "test.panic", num(1)))
		_, err := New().Execute(context.Background(), net, nil)
		assert.ErrorContains(t, err, "panic: boom")
	})

	t.Run("tampered network", func(t *testing.T) {
		net := f.addNetwork(t)
		net.Nodes[2].InputTypes[0] = cty.String
		_, err := New().Execute(context.Background(), net, nil)
		assert.ErrorIs(t, err, ErrInternal)
	})
}

func TestExecute_ParallelMatchesSequential(t *testing.T) {
	f := newFixture(t)
	nodes := []*graph.DocumentNode{op("k0", "math.const", num(0))}
	var exports []graph.NodeID
	for i := 1; i <= 20; i++ {
		id := graph.NodeID("k" + string(rune('a'+i)))
		nodes = append(nodes, op(id, "math.add", graph.Ref("k0"), num(int64(i))))
		exports = append(exports, id)
	}
	net := f.compile(t, nil, exports, nodes...)

	seq, err := New().Execute(context.Background(), net, nil)
	require.NoError(t, err)
	par, err := New(WithWorkers(8)).Execute(context.Background(), net, nil)
	require.NoError(t, err)
	require.Len(t, par, len(seq))
	for i := range seq {
		assert.True(t, seq[i].RawEquals(par[i]))
	}
}

func TestExecute_ConcurrentCallsComputeOnce(t *testing.T) {
	f := newFixture(t)
	f.delay = 50 * time.Millisecond
	net := f.addNetwork(t)
	exec := New(WithCache(memo.New(0)), WithWorkers(2))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := exec.Execute(context.Background(), net, nil)
			assert.NoError(t, err)
			if err == nil {
				requireNumber(t, 8, out[0])
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), f.callsOf("math.add"))
}

func TestExecute_Cancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 3} {
		_, err := New(WithWorkers(workers)).Execute(ctx, f.addNetwork(t), nil)
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, int64(0), f.callsOf("math.add"))
}
