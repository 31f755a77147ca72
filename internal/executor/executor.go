package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/graphcraft/internal/ctxlog"
	"github.com/specialistvlad/graphcraft/internal/memo"
	"github.com/specialistvlad/graphcraft/internal/proto"
	"github.com/specialistvlad/graphcraft/internal/types"
	"github.com/zclconf/go-cty/cty"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
)

// Executor runs proto networks. It is safe for concurrent use; concurrent
// executions may share the cache.
type Executor struct {
	cache   *memo.Cache
	workers int
	logger  *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithCache shares c between executions. Without it nothing is cached.
func WithCache(c *memo.Cache) Option {
	return func(e *Executor) { e.cache = c }
}

// WithWorkers sets the number of concurrent workers. One or less runs the
// nodes sequentially.
func WithWorkers(n int) Option {
	return func(e *Executor) { e.workers = max(n, 1) }
}

// WithLogger overrides the logger found in the context.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New returns an executor.
func New(opts ...Option) *Executor {
	e := &Executor{workers: 1}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type nodeState int32

const (
	statePending nodeState = iota
	stateDone
	stateFailed
	stateSkipped
)

// run is the state of one Execute call.
type run struct {
	net       *proto.Network
	inputs    []cty.Value
	inputKeys []*types.Digest

	values    []cty.Value
	keys      []types.Digest
	cacheable []bool
	state     []nodeState

	aborted atomic.Bool
	mu      sync.Mutex
	errs    error
}

func (r *run) fail(err error) {
	r.mu.Lock()
	r.errs = multierr.Append(r.errs, err)
	r.mu.Unlock()
}

// blocked reports whether node i must be skipped.
func (r *run) blocked(i int) bool {
	if r.aborted.Load() {
		return true
	}
	for _, dep := range r.net.Dependencies(i) {
		if r.state[dep] != stateDone {
			return true
		}
	}
	return false
}

// Execute evaluates net with the given external inputs and returns the
// values of its outputs.
func (e *Executor) Execute(ctx context.Context, net *proto.Network, inputs []cty.Value) ([]cty.Value, error) {
	logger := e.logger
	if logger == nil {
		logger = ctxlog.FromContext(ctx)
	}
	m := instruments()

	ctx, span := tracer.Start(ctx, "executor.Execute", trace.WithAttributes(
		attribute.Int("graphcraft.nodes", len(net.Nodes)),
		attribute.Int("graphcraft.workers", e.workers),
		attribute.String("graphcraft.network_hash", net.Hash.Short()),
	))
	defer span.End()

	if err := checkInputs(net, inputs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	r := &run{
		net:       net,
		inputs:    inputs,
		inputKeys: make([]*types.Digest, len(inputs)),
		values:    make([]cty.Value, len(net.Nodes)),
		keys:      make([]types.Digest, len(net.Nodes)),
		cacheable: make([]bool, len(net.Nodes)),
		state:     make([]nodeState, len(net.Nodes)),
	}
	for i, v := range inputs {
		if d, err := types.HashValue(v); err == nil {
			r.inputKeys[i] = &d
		} else {
			logger.Debug("External input is not hashable, dependents will not be cached.", "input", net.Inputs[i].Name, "error", err)
		}
	}

	start := time.Now()
	logger.Debug("Execution started.", "nodes", len(net.Nodes), "workers", e.workers, "cache", e.cache != nil)
	if e.workers > 1 {
		e.runParallel(ctx, r, logger)
	} else {
		e.runSequential(ctx, r, logger)
	}
	m.executions.Add(ctx, 1)

	if r.errs != nil {
		logger.Debug("Execution failed.", "duration", time.Since(start), "errors", len(multierr.Errors(r.errs)))
		span.RecordError(r.errs)
		span.SetStatus(codes.Error, "execution failed")
		return nil, r.errs
	}

	outputs := make([]cty.Value, len(net.Outputs))
	for i, o := range net.Outputs {
		outputs[i] = r.values[o]
	}
	logger.Debug("Execution finished.", "duration", time.Since(start))
	span.SetStatus(codes.Ok, "")
	return outputs, nil
}

func checkInputs(net *proto.Network, inputs []cty.Value) error {
	if len(inputs) != len(net.Inputs) {
		return fmt.Errorf("%w: network takes %d, got %d", ErrInputArity, len(net.Inputs), len(inputs))
	}
	var errs error
	for i, p := range net.Inputs {
		if err := types.Check(inputs[i], p.Type); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: input '%s': %w", ErrInputType, p.Name, err))
		}
	}
	return errs
}

func (e *Executor) runSequential(ctx context.Context, r *run, logger *slog.Logger) {
	for i := range r.net.Nodes {
		if err := ctx.Err(); err != nil {
			r.fail(fmt.Errorf("execution stopped before node '%s': %w", r.net.Nodes[i].Path, err))
			return
		}
		e.step(ctx, r, i, logger)
	}
}

// step runs node i unless it is blocked.
func (e *Executor) step(ctx context.Context, r *run, i int, logger *slog.Logger) {
	node := r.net.Nodes[i]
	if r.blocked(i) || ctx.Err() != nil {
		r.state[i] = stateSkipped
		logger.Debug("Skipping node.", "node", node.Path)
		return
	}
	if err := e.evaluate(ctx, r, i, logger); err != nil {
		r.state[i] = stateFailed
		if errors.Is(err, ErrInternal) {
			r.aborted.Store(true)
		}
		r.fail(&NodeError{Path: node.Path, Identifier: node.Identifier, Err: err})
		return
	}
	r.state[i] = stateDone
}
