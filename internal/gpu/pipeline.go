package gpu

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/specialistvlad/graphcraft/internal/artifact"
	"github.com/specialistvlad/graphcraft/internal/compilesrv"
	"github.com/specialistvlad/graphcraft/internal/ctxlog"
	"github.com/specialistvlad/graphcraft/internal/proto"
	"github.com/specialistvlad/graphcraft/internal/shadergen"
)

// Compiler turns shader source into an artifact. *compilesrv.Service and
// *compileclient.Client implement it.
type Compiler interface {
	Compile(ctx context.Context, req compilesrv.Request) (*compilesrv.Response, error)
}

// Kernel is a network ready to be loaded on a device.
type Kernel struct {
	Network  *proto.Network
	Shader   *shadergen.Shader
	Artifact *artifact.Artifact
}

// JobState is the lifecycle of a compile job.
type JobState int

const (
	JobPending JobState = iota
	JobCompiling
	JobSucceeded
	JobCacheHit
	JobFailed
)

func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobCompiling:
		return "compiling"
	case JobSucceeded:
		return "succeeded"
	case JobCacheHit:
		return "cache-hit"
	case JobFailed:
		return "failed"
	}
	return fmt.Sprintf("JobState(%d)", int(s))
}

// Terminal reports whether the job has finished.
func (s JobState) Terminal() bool { return s >= JobSucceeded }

// Job is an asynchronous compilation. It is never retried automatically.
type Job struct {
	mu     sync.Mutex
	state  JobState
	kernel *Kernel
	err    error
	done   chan struct{}
}

func newJob() *Job { return &Job{done: make(chan struct{})} }

// State returns the current state.
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Done is closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job finishes or ctx is done. Cancelling ctx does
// not cancel the job.
func (j *Job) Wait(ctx context.Context) (*Kernel, error) {
	select {
	case <-j.done:
		j.mu.Lock()
		defer j.mu.Unlock()
		return j.kernel, j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (j *Job) set(s JobState) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

func (j *Job) finish(k *Kernel, hit bool, err error) {
	j.mu.Lock()
	switch {
	case err != nil:
		j.state, j.err = JobFailed, err
	case hit:
		j.state, j.kernel = JobCacheHit, k
	default:
		j.state, j.kernel = JobSucceeded, k
	}
	j.mu.Unlock()
	close(j.done)
}

// Pipeline compiles networks into kernels and runs them on a device.
type Pipeline struct {
	compiler Compiler
	device   Device
	profile  string
	genOpts  []shadergen.Option
	logger   *slog.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithProfile selects the compile profile. Empty means the server default.
func WithProfile(name string) Option { return func(p *Pipeline) { p.profile = name } }

// WithShaderOptions passes options to shadergen.Generate.
func WithShaderOptions(opts ...shadergen.Option) Option {
	return func(p *Pipeline) { p.genOpts = append(p.genOpts, opts...) }
}

// WithLogger overrides the logger found in the context.
func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.logger = l } }

// NewPipeline returns a pipeline compiling with c and dispatching on d.
func NewPipeline(c Compiler, d Device, opts ...Option) *Pipeline {
	p := &Pipeline{compiler: c, device: d}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Device is the device kernels run on.
func (p *Pipeline) Device() Device { return p.device }

// Generate lowers net without compiling it.
func (p *Pipeline) Generate(net *proto.Network) (*shadergen.Shader, error) {
	return shadergen.Generate(net, p.genOpts...)
}

// Submit starts compiling net and returns immediately. The job keeps the
// values of ctx but not its cancellation. It fails with
// a *shadergen.UncompilableError when the network cannot run on a device.
func (p *Pipeline) Submit(ctx context.Context, net *proto.Network) *Job {
	logger := p.logger
	if logger == nil {
		logger = ctxlog.FromContext(ctx)
	}
	logger = logger.With("network", net.Hash.Short())
	ctx = context.WithoutCancel(ctx)

	job := newJob()
	go func() {
		job.set(JobCompiling)
		logger.Debug("Generating shader.")
		sh, err := p.Generate(net)
		if err != nil {
			logger.Info("Network cannot run on the device.", "error", err)
			job.finish(nil, false, err)
			return
		}
		resp, err := p.compiler.Compile(ctx, compilesrv.Request{Source: sh.Source, Profile: p.profile})
		if err != nil {
			logger.Warn("Shader compilation failed.", "error", err)
			job.finish(nil, false, fmt.Errorf("compile network %s: %w", net.Hash.Short(), err))
			return
		}
		logger.Debug("Shader compiled.", "key", resp.Artifact.Key.Short(), "cache_hit", resp.CacheHit)
		job.finish(&Kernel{Network: net, Shader: sh, Artifact: resp.Artifact}, resp.CacheHit, nil)
	}()
	return job
}
