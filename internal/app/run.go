package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/graphcraft/internal/compiler"
	"github.com/specialistvlad/graphcraft/internal/ctxlog"
	"github.com/specialistvlad/graphcraft/internal/graph"
	"github.com/specialistvlad/graphcraft/internal/proto"
	"github.com/specialistvlad/graphcraft/internal/shadergen"
	"github.com/zclconf/go-cty/cty"
)

// Run executes the main application logic based on the provided configuration.
// With Watch set it keeps re-running on changes until ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.")

	a.healthCheckServer()
	defer func() {
		if err := a.closeHealthCheckServer(); err != nil {
			a.logger.Warn("Health check server did not stop cleanly.", "error", err)
		}
	}()

	if a.config.Watch {
		return a.watch(ctx)
	}
	_, err := a.RunOnce(ctx)
	a.logger.Debug("App.Run method finished.")
	return err
}

// RunOnce loads, compiles and evaluates the graph once and writes the
// results.
func (a *App) RunOnce(ctx context.Context) ([]cty.Value, error) {
	if !ctxlog.Has(ctx) {
		ctx = ctxlog.WithLogger(ctx, a.logger)
	}
	logger := ctxlog.FromContext(ctx)

	doc, err := a.LoadDocument(ctx, a.config.GraphPath)
	if err != nil {
		return nil, err
	}
	inputs, err := bindInputs(doc, a.config.Inputs)
	if err != nil {
		return nil, err
	}

	gpuMode := a.config.GPU || a.config.EmitShader != ""
	net, err := a.compile(ctx, doc, inputs, gpuMode)
	if err != nil {
		return nil, err
	}
	logger.Info("Graph compiled.", "nodes", len(net.Nodes), "outputs", len(net.Outputs), "hash", net.Hash.Short())

	if a.config.EmitShader != "" {
		if err := a.emitShader(ctx, net); err != nil {
			return nil, err
		}
	}

	var results []cty.Value
	ran := false
	if a.config.GPU {
		results, err = a.runGPU(ctx, net, inputs)
		switch {
		case err == nil:
			ran = true
		case errors.Is(err, shadergen.ErrUncompilable):
			logger.Warn("Graph cannot run on the device, interpreting instead.", "reason", err)
			if net, err = a.compile(ctx, doc, inputs, false); err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
	}
	if !ran {
		logger.Info("🚀 Starting execution...", "workers", a.config.WorkerCount)
		results, err = a.exec.Execute(ctx, net, inputs)
		if err != nil {
			return nil, fmt.Errorf("execution failed: %w", err)
		}
	}

	stats := a.cache.Stats()
	logger.Info("🏁 Execution finished.", "results", len(results), "cache_hits", stats.Hits, "cache_entries", stats.Entries)
	if err := a.writeResults(ctx, results); err != nil {
		return nil, err
	}
	return results, nil
}

// compile turns doc into a network. On the GPU path list inputs are lanes,
// so the network is typed by their element type.
func (a *App) compile(ctx context.Context, doc *graph.Document, inputs []cty.Value, lanes bool) (*proto.Network, error) {
	logger := ctxlog.FromContext(ctx)
	inputTypes := make([]cty.Type, len(inputs))
	for i, v := range inputs {
		inputTypes[i] = v.Type()
		if lanes {
			if et, ok := laneType(v); ok {
				inputTypes[i] = et
			}
		}
	}

	opts := []compiler.Option{compiler.WithInputTypes(inputTypes...)}
	if len(a.config.Nodes) > 0 {
		opts = append(opts, compiler.WithOutputs(a.config.Nodes...))
	}
	net, diags, err := a.compiler.Compile(ctx, doc, opts...)
	for _, d := range diags.Warnings() {
		logger.Warn("Compiler warning.", "warning", d.Error())
	}
	if err != nil {
		return nil, err
	}
	return net, nil
}

// laneType is the element type of a list used as lanes.
func laneType(v cty.Value) (cty.Type, bool) {
	t := v.Type()
	if t.IsListType() || t.IsSetType() {
		return t.ElementType(), true
	}
	return cty.NilType, false
}
