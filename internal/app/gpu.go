package app

import (
	"context"
	"fmt"
	"os"

	"github.com/specialistvlad/graphcraft/internal/compileclient"
	"github.com/specialistvlad/graphcraft/internal/compilesrv"
	"github.com/specialistvlad/graphcraft/internal/ctxlog"
	"github.com/specialistvlad/graphcraft/internal/gpu"
	"github.com/specialistvlad/graphcraft/internal/proto"
	"github.com/specialistvlad/graphcraft/internal/toolchain"
	"github.com/zclconf/go-cty/cty"
)

// gpuPath holds the pipeline, created on first use.
type gpuPath struct {
	pipeline *gpu.Pipeline
	client   *compileclient.Client
}

func (g *gpuPath) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (a *App) pipeline() *gpu.Pipeline {
	if a.gpu != nil {
		return a.gpu.pipeline
	}
	g := &gpuPath{}
	c := a.gpuCompiler
	switch {
	case c != nil:
	case a.config.CompileServer != "":
		g.client = compileclient.New(a.config.CompileServer)
		c = g.client
		a.logger.Debug("Using remote compile server.", "url", a.config.CompileServer)
	default:
		c = compilesrv.NewService(toolchain.DefaultProfiles(), compilesrv.WithLogger(a.logger))
	}
	dev := gpu.NewSoftwareDevice(gpu.WithLaneCache(a.cache), gpu.WithDeviceLogger(a.logger))
	g.pipeline = gpu.NewPipeline(c, dev, gpu.WithProfile(a.config.Profile), gpu.WithLogger(a.logger))
	a.gpu = g
	return g.pipeline
}

// emitShader writes the WGSL source of net.
func (a *App) emitShader(ctx context.Context, net *proto.Network) error {
	sh, err := a.pipeline().Generate(net)
	if err != nil {
		return err
	}
	if err := os.WriteFile(a.config.EmitShader, []byte(sh.Source), 0o644); err != nil {
		return fmt.Errorf("failed to write shader: %w", err)
	}
	ctxlog.FromContext(ctx).Info("Shader written.", "path", a.config.EmitShader, "bindings", len(sh.Bindings))
	return nil
}

// runGPU compiles net to a kernel and dispatches it. List inputs are lanes
// and single values are shared by every lane; when every input is a single
// value the results are single values too.
func (a *App) runGPU(ctx context.Context, net *proto.Network, inputs []cty.Value) ([]cty.Value, error) {
	logger := ctxlog.FromContext(ctx)
	p := a.pipeline()

	job := p.Submit(ctx, net)
	kernel, err := job.Wait(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("Kernel ready.", "state", job.State().String(), "artifact", kernel.Artifact.Key.Short(), "bytes", len(kernel.Artifact.Binary))

	lanes := 1
	for _, v := range inputs {
		if _, ok := laneType(v); ok {
			lanes = max(lanes, v.LengthInt())
		}
	}
	scalar := true
	columns := make([]cty.Value, len(inputs))
	for i, v := range inputs {
		if _, ok := laneType(v); ok {
			scalar = false
			columns[i] = v
			continue
		}
		// Single values are broadcast to every lane.
		col := make([]cty.Value, lanes)
		for l := range col {
			col[l] = v
		}
		columns[i] = cty.ListVal(col)
	}

	d, err := p.Run(ctx, kernel, columns)
	if err != nil {
		return nil, err
	}
	outs, err := d.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("dispatch failed: %w", err)
	}
	logger.Info("Dispatch finished.", "device", p.Device().Name(), "lanes", d.Lanes())
	if !scalar {
		return outs, nil
	}
	for i, out := range outs {
		outs[i] = out.Index(cty.NumberIntVal(0))
	}
	return outs, nil
}
