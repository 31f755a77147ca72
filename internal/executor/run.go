package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/specialistvlad/graphcraft/internal/proto"
	"github.com/specialistvlad/graphcraft/internal/types"
	"github.com/zclconf/go-cty/cty"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// evaluate gathers the arguments of node i and produces its value, from the
// cache when possible.
func (e *Executor) evaluate(ctx context.Context, r *run, i int, logger *slog.Logger) error {
	node := r.net.Nodes[i]
	args, err := r.arguments(i)
	if err != nil {
		return err
	}

	key, cacheable := r.key(i)
	r.cacheable[i] = cacheable
	r.keys[i] = key

	compute := func(ctx context.Context) (cty.Value, error) {
		return e.call(ctx, node, args, logger)
	}

	var v cty.Value
	if e.cache != nil && cacheable {
		var hit bool
		v, hit, err = e.cache.GetOrCompute(ctx, key, compute)
		if hit {
			instruments().cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("graphcraft.identifier", node.Identifier)))
			logger.Debug("Node value taken from cache.", "node", node.Path, "key", key.Short())
		}
	} else {
		v, err = compute(ctx)
	}
	if err != nil {
		return err
	}
	r.values[i] = v
	return nil
}

// arguments collects and type-checks the input values of node i.
func (r *run) arguments(i int) ([]cty.Value, error) {
	node := r.net.Nodes[i]
	args := make([]cty.Value, len(node.Inputs))
	for slot, in := range node.Inputs {
		switch in.Kind {
		case proto.Const:
			args[slot] = in.Value
		case proto.NodeRef:
			args[slot] = r.values[in.Node]
		case proto.External:
			args[slot] = r.inputs[in.External]
		}
		if err := types.Check(args[slot], node.InputTypes[slot]); err != nil {
			return nil, fmt.Errorf("%w: input %d: %w", ErrInternal, slot, err)
		}
	}
	return args, nil
}

// key derives the runtime cache key of node i. Impure nodes and nodes fed
// by anything uncacheable have no key.
func (r *run) key(i int) (types.Digest, bool) {
	node := r.net.Nodes[i]
	if !node.Pure() {
		return types.Digest{}, false
	}
	x := types.NewHasher().Digest(node.Hash)
	for _, in := range node.Inputs {
		switch in.Kind {
		case proto.NodeRef:
			if !r.cacheable[in.Node] {
				return types.Digest{}, false
			}
			x.Digest(r.keys[in.Node])
		case proto.External:
			k := r.inputKeys[in.External]
			if k == nil {
				return types.Digest{}, false
			}
			x.Digest(*k)
		}
	}
	return x.Sum(), true
}

// call invokes the implementation of node and checks its result.
func (e *Executor) call(ctx context.Context, node *proto.Node, args []cty.Value, logger *slog.Logger) (v cty.Value, err error) {
	m := instruments()
	attrs := metric.WithAttributes(attribute.String("graphcraft.identifier", node.Identifier))
	ctx, span := tracer.Start(ctx, node.Identifier, trace.WithAttributes(
		attribute.String("graphcraft.path", node.Path),
		attribute.String("graphcraft.impl", node.ImplKey),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		m.nodeDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		if err != nil {
			m.nodeFailures.Add(ctx, 1, attrs)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Debug("Node failed.", "node", node.Path, "error", err)
			return
		}
		span.SetStatus(codes.Ok, "")
	}()

	logger.Debug("Running node.", "node", node.Path, "impl", node.ImplKey)
	m.nodeRuns.Add(ctx, 1, attrs)
	v, err = node.Impl.Func(ctx, args, node.OutputType)
	if err != nil {
		// A downcast without a conversion error is a type the compiler should
		// have ruled out; a failed conversion is a bad value.
		var de *types.DowncastError
		if errors.As(err, &de) && de.Err == nil {
			return cty.NilVal, fmt.Errorf("%w: %w", ErrInternal, err)
		}
		return cty.NilVal, err
	}
	if err := types.Check(v, node.OutputType); err != nil {
		return cty.NilVal, fmt.Errorf("%w: result: %w", ErrInternal, err)
	}
	return v, nil
}
