package compilesrv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/specialistvlad/graphcraft/internal/artifact"
	"github.com/specialistvlad/graphcraft/internal/ctxlog"
	"github.com/specialistvlad/graphcraft/internal/toolchain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// Request asks for one shader to be compiled. An empty Profile selects
// toolchain.DefaultProfile.
type Request struct {
	Source  string
	Profile string
}

// Response carries the artifact and whether it came from the cache.
type Response struct {
	Artifact *artifact.Artifact
	CacheHit bool
}

// Service compiles shaders. It is safe for concurrent use.
type Service struct {
	profiles toolchain.Profiles
	cache    *artifact.Cache
	sem      *semaphore.Weighted
	timeout  time.Duration
	workRoot string
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
}

// Option customizes a Service.
type Option func(*Service)

// WithCache replaces the default memory-only artifact cache.
func WithCache(c *artifact.Cache) Option { return func(s *Service) { s.cache = c } }

// WithTimeout bounds every toolchain run.
func WithTimeout(d time.Duration) Option { return func(s *Service) { s.timeout = d } }

// WithMaxConcurrent bounds the number of simultaneous toolchain runs.
func WithMaxConcurrent(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithWorkRoot sets the parent of the per-request work directories.
func WithWorkRoot(dir string) Option { return func(s *Service) { s.workRoot = dir } }

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithMetrics records into m.
func WithMetrics(m *Metrics) Option { return func(s *Service) { s.metrics = m } }

// NewService returns a service compiling with profiles.
func NewService(profiles toolchain.Profiles, opts ...Option) *Service {
	s := &Service{
		profiles: profiles,
		timeout:  DefaultTimeout,
		sem:      semaphore.NewWeighted(DefaultMaxConcurrent),
		tracer:   otel.Tracer("graphcraft/compilesrv"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.cache == nil {
		s.cache = artifact.NewCache(nil, s.logger)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	return s
}

// Profiles returns the names of the configured profiles.
func (s *Service) Profiles() []string { return s.profiles.Names() }

// Compile returns the artifact for req, compiling it on a cache miss.
// Identical requests are idempotent and share one compilation.
func (s *Service) Compile(ctx context.Context, req Request) (resp *Response, err error) {
	profile := req.Profile
	if profile == "" {
		profile = toolchain.DefaultProfile
	}
	ctx, span := s.tracer.Start(ctx, "compilesrv.Compile", trace.WithAttributes(
		attribute.String("profile", profile),
		attribute.Int("source_bytes", len(req.Source)),
	))
	defer func() {
		s.metrics.requests.WithLabelValues(outcome(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	logger := s.logFor(ctx).With("profile", profile)

	if req.Source == "" {
		return nil, &CompileError{Kind: KindBadRequest, Message: "source is empty"}
	}
	tc, ok := s.profiles.Get(profile)
	if !ok {
		return nil, &CompileError{Kind: KindBadRequest, Message: fmt.Sprintf("unknown profile %q (available: %v)", profile, s.profiles.Names())}
	}

	key := artifact.Key(req.Source, profile)
	span.SetAttributes(attribute.String("key", key.Short()))
	logger = logger.With("key", key.Short())

	a, hit, err := s.cache.GetOrCompile(ctx, key, func(ctx context.Context) (*artifact.Artifact, error) {
		return s.run(ctx, logger, tc, profile, req.Source)
	})
	if err != nil {
		var ce *CompileError
		if errors.As(err, &ce) {
			return nil, ce
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &CompileError{Kind: KindInternal, Err: err}
	}
	if hit {
		s.metrics.cacheHits.Inc()
		logger.Debug("Artifact served from cache.")
	}
	span.SetAttributes(attribute.Bool("cache_hit", hit))
	return &Response{Artifact: a, CacheHit: hit}, nil
}

func (s *Service) logFor(ctx context.Context) *slog.Logger {
	if ctxlog.Has(ctx) {
		return ctxlog.FromContext(ctx)
	}
	return s.logger
}

// run compiles on a cache miss. The timeout covers the wait for a slot.
func (s *Service) run(ctx context.Context, logger *slog.Logger, tc toolchain.Toolchain, profile, source string) (*artifact.Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, &CompileError{Kind: KindTimeout, Message: fmt.Sprintf("no compile slot within %s", s.timeout), Err: err}
	}
	defer s.sem.Release(1)

	s.metrics.inFlight.Inc()
	defer s.metrics.inFlight.Dec()

	dir, err := os.MkdirTemp(s.workRoot, "graphcraft-compile-*")
	if err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("Could not remove work directory.", "dir", dir, "error", err)
		}
	}()

	logger.Info("Compiling shader.", "toolchain", tc.Name())
	start := time.Now()
	binary, warnings, err := tc.Compile(ctx, dir, source)
	elapsed := time.Since(start)
	s.metrics.duration.Observe(elapsed.Seconds())

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			logger.Warn("Compilation timed out.", "timeout", s.timeout)
			return nil, &CompileError{Kind: KindTimeout, Message: fmt.Sprintf("toolchain %s did not finish within %s", tc.Name(), s.timeout), Err: err}
		}
		var derr *toolchain.DiagnosticError
		if errors.As(err, &derr) {
			logger.Info("Shader rejected.", "diagnostics", len(derr.Diagnostics))
			return nil, &CompileError{Kind: KindDiagnostics, Message: err.Error(), Diagnostics: derr.Diagnostics, Err: err}
		}
		return nil, &CompileError{Kind: KindInternal, Err: err}
	}

	logger.Info("Shader compiled.", "bytes", len(binary), "warnings", len(warnings), "duration", elapsed)
	return &artifact.Artifact{
		Profile:     profile,
		Binary:      binary,
		Diagnostics: warnings,
		CompiledAt:  time.Now().UTC(),
	}, nil
}
