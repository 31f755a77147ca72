package gpu

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/specialistvlad/graphcraft/internal/executor"
	"github.com/specialistvlad/graphcraft/internal/memo"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/sync/errgroup"
)

// SoftwareDevice evaluates kernels on the CPU, lane by lane, with the
// interpreted implementations of their nodes. Results match the device
// buffers' precision: numbers are rounded to f32 on the way in and out.
type SoftwareDevice struct {
	mu      sync.Mutex
	nextID  uint64
	modules map[ModuleID]*Kernel
	buffers map[BufferID][]byte

	exec        *executor.Executor
	parallelism int
	logger      *slog.Logger
}

// SoftwareOption customizes a SoftwareDevice.
type SoftwareOption func(*softwareOptions)

type softwareOptions struct {
	parallelism int
	cache       *memo.Cache
	logger      *slog.Logger
}

// WithParallelism bounds the number of lanes evaluated at once.
func WithParallelism(n int) SoftwareOption {
	return func(o *softwareOptions) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithLaneCache shares a value cache between lanes and dispatches, so
// subexpressions that do not depend on the lane are evaluated once.
func WithLaneCache(c *memo.Cache) SoftwareOption {
	return func(o *softwareOptions) { o.cache = c }
}

// WithDeviceLogger sets the device logger.
func WithDeviceLogger(l *slog.Logger) SoftwareOption {
	return func(o *softwareOptions) { o.logger = l }
}

// NewSoftwareDevice returns a device using every CPU by default.
func NewSoftwareDevice(opts ...SoftwareOption) *SoftwareDevice {
	o := softwareOptions{parallelism: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	execOpts := []executor.Option{executor.WithLogger(o.logger)}
	if o.cache != nil {
		execOpts = append(execOpts, executor.WithCache(o.cache))
	}
	return &SoftwareDevice{
		modules:     make(map[ModuleID]*Kernel),
		buffers:     make(map[BufferID][]byte),
		exec:        executor.New(execOpts...),
		parallelism: o.parallelism,
		logger:      o.logger,
	}
}

func (d *SoftwareDevice) Name() string { return "software" }

func (d *SoftwareDevice) id() uint64 {
	d.nextID++
	return d.nextID
}

// LoadModule accepts any kernel generated from a network.
func (d *SoftwareDevice) LoadModule(_ context.Context, k *Kernel) (ModuleID, error) {
	if k == nil || k.Network == nil || k.Shader == nil {
		return 0, fmt.Errorf("kernel has no network or shader")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := ModuleID(d.id())
	d.modules[id] = k
	return id, nil
}

func (d *SoftwareDevice) UnloadModule(id ModuleID) {
	d.mu.Lock()
	delete(d.modules, id)
	d.mu.Unlock()
}

func (d *SoftwareDevice) CreateBuffer(size int) (BufferID, error) {
	if size < 0 {
		return 0, fmt.Errorf("buffer size %d is negative", size)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := BufferID(d.id())
	d.buffers[id] = make([]byte, size)
	return id, nil
}

func (d *SoftwareDevice) DestroyBuffer(id BufferID) {
	d.mu.Lock()
	delete(d.buffers, id)
	d.mu.Unlock()
}

func (d *SoftwareDevice) WriteBuffer(id BufferID, offset int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.buffers[id]
	if !ok {
		return unknown("buffer", uint64(id))
	}
	if offset < 0 || offset+len(data) > len(buf) {
		return fmt.Errorf("write of %d bytes at %d overflows buffer %d of %d bytes", len(data), offset, id, len(buf))
	}
	copy(buf[offset:], data)
	return nil
}

func (d *SoftwareDevice) ReadBuffer(id BufferID, offset, size int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.buffers[id]
	if !ok {
		return nil, unknown("buffer", uint64(id))
	}
	if offset < 0 || size < 0 || offset+size > len(buf) {
		return nil, fmt.Errorf("read of %d bytes at %d overflows buffer %d of %d bytes", size, offset, id, len(buf))
	}
	return append([]byte(nil), buf[offset:offset+size]...), nil
}

// Dispatch evaluates lanes invocations on a background goroutine. The work
// is abandoned when ctx ends.
func (d *SoftwareDevice) Dispatch(ctx context.Context, mod ModuleID, buffers []BufferID, lanes int) (*Fence, error) {
	d.mu.Lock()
	k, ok := d.modules[mod]
	if !ok {
		d.mu.Unlock()
		return nil, unknown("module", uint64(mod))
	}
	bindings := k.Shader.Bindings
	if len(buffers) != len(bindings) {
		d.mu.Unlock()
		return nil, fmt.Errorf("module binds %d buffers, got %d", len(bindings), len(buffers))
	}
	need := lanes * ElementSize
	inputs := make([][]cty.Value, len(k.Network.Inputs))
	for _, b := range bindings {
		buf, ok := d.buffers[buffers[b.Binding]]
		if !ok {
			d.mu.Unlock()
			return nil, unknown("buffer", uint64(buffers[b.Binding]))
		}
		if len(buf) < need {
			d.mu.Unlock()
			return nil, fmt.Errorf("buffer %s holds %d bytes, %d lanes need %d", b.Name, len(buf), lanes, need)
		}
		if b.Role == RoleInput {
			col, err := DecodeColumn(b.Type, buf[:need])
			if err != nil {
				d.mu.Unlock()
				return nil, fmt.Errorf("buffer %s: %w", b.Name, err)
			}
			inputs[b.Index] = col
		}
	}
	d.mu.Unlock()

	fence := NewFence()
	go func() {
		fence.Signal(d.run(ctx, k, buffers, inputs, lanes))
	}()
	return fence, nil
}

func (d *SoftwareDevice) run(ctx context.Context, k *Kernel, buffers []BufferID, inputs [][]cty.Value, lanes int) error {
	start := time.Now()
	outs := k.Shader.Outputs()
	results := make([][]byte, len(outs))
	for i := range results {
		results[i] = make([]byte, lanes*ElementSize)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.parallelism)
	for lane := range lanes {
		g.Go(func() error {
			args := make([]cty.Value, len(inputs))
			for i, col := range inputs {
				args[i] = col[lane]
			}
			vals, err := d.exec.Execute(gctx, k.Network, args)
			if err != nil {
				return fmt.Errorf("lane %d: %w", lane, err)
			}
			for i, b := range outs {
				if err := encodeElement(results[i][lane*ElementSize:], b.Type, vals[b.Index]); err != nil {
					return fmt.Errorf("lane %d output %s: %w", lane, b.Name, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, b := range outs {
		if err := d.WriteBuffer(buffers[b.Binding], 0, results[i]); err != nil {
			return err
		}
	}
	d.logger.Debug("Software dispatch finished.", "lanes", lanes, "duration", time.Since(start))
	return nil
}
