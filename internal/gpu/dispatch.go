package gpu

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/graphcraft/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

type runOptions struct {
	lanes int
}

// RunOption customizes Pipeline.Run.
type RunOption func(*runOptions)

// WithLanes sets the number of invocations of a kernel without inputs.
func WithLanes(n int) RunOption { return func(o *runOptions) { o.lanes = n } }

// Dispatch is a running kernel.
type Dispatch struct {
	device  Device
	module  ModuleID
	fence   *Fence
	kernel  *Kernel
	buffers []BufferID
	lanes   int
}

// Lanes is the number of invocations.
func (d *Dispatch) Lanes() int { return d.lanes }

// Done is closed when the device finishes.
func (d *Dispatch) Done() <-chan struct{} { return d.fence.Done() }

// Wait blocks until the device finishes, reads the output buffers back and
// releases the device resources. It returns one list value per network
// output. If ctx ends first the resources are released once the device
// finishes.
func (d *Dispatch) Wait(ctx context.Context) ([]cty.Value, error) {
	if err := d.fence.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			go func() {
				<-d.fence.Done()
				d.release()
			}()
			return nil, err
		}
		d.release()
		return nil, err
	}
	defer d.release()

	outs := d.kernel.Shader.Outputs()
	results := make([]cty.Value, len(outs))
	for k, b := range outs {
		raw, err := d.device.ReadBuffer(d.buffers[b.Binding], 0, d.lanes*ElementSize)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", b.Name, err)
		}
		lanes, err := DecodeColumn(b.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", b.Name, err)
		}
		if len(lanes) == 0 {
			results[k] = cty.ListValEmpty(b.Type)
		} else {
			results[k] = cty.ListVal(lanes)
		}
	}
	return results, nil
}

func (d *Dispatch) release() {
	for _, id := range d.buffers {
		d.device.DestroyBuffer(id)
	}
	d.device.UnloadModule(d.module)
}

// Run binds inputs, one list per network input with one element per lane,
// and dispatches the kernel on the pipeline's device.
func (p *Pipeline) Run(ctx context.Context, k *Kernel, inputs []cty.Value, opts ...RunOption) (d *Dispatch, err error) {
	o := runOptions{lanes: 1}
	for _, opt := range opts {
		opt(&o)
	}
	logger := ctxlog.FromContext(ctx)

	ins := k.Shader.Inputs()
	if len(inputs) != len(ins) {
		return nil, fmt.Errorf("kernel takes %d inputs, got %d", len(ins), len(inputs))
	}
	columns := make([][]cty.Value, len(inputs))
	lanes := o.lanes
	for i, v := range inputs {
		col, err := Column(v)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", ins[i].Name, err)
		}
		if i == 0 {
			lanes = len(col)
		} else if len(col) != lanes {
			return nil, fmt.Errorf("input %s has %d lanes, input %s has %d", ins[i].Name, len(col), ins[0].Name, lanes)
		}
		columns[i] = col
	}
	if lanes <= 0 {
		return nil, errors.New("dispatch needs at least one lane")
	}

	mod, err := p.device.LoadModule(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("load kernel: %w", err)
	}
	d = &Dispatch{device: p.device, module: mod, kernel: k, lanes: lanes}
	defer func() {
		if err != nil {
			d.release()
		}
	}()

	d.buffers = make([]BufferID, len(k.Shader.Bindings))
	for _, b := range k.Shader.Bindings {
		id, err := p.device.CreateBuffer(lanes * ElementSize)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", b.Name, err)
		}
		d.buffers[b.Binding] = id
	}
	for i, b := range ins {
		data, err := EncodeColumn(b.Type, columns[i])
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", b.Name, err)
		}
		if err := p.device.WriteBuffer(d.buffers[b.Binding], 0, data); err != nil {
			return nil, fmt.Errorf("write %s: %w", b.Name, err)
		}
	}

	logger.Debug("Dispatching kernel.", "device", p.device.Name(), "lanes", lanes, "network", k.Network.Hash.Short())
	d.fence, err = p.device.Dispatch(ctx, mod, d.buffers, lanes)
	if err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	return d, nil
}
