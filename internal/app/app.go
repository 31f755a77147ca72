package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/graphcraft/internal/compiler"
	"github.com/specialistvlad/graphcraft/internal/ctxlog"
	"github.com/specialistvlad/graphcraft/internal/executor"
	"github.com/specialistvlad/graphcraft/internal/gpu"
	"github.com/specialistvlad/graphcraft/internal/memo"
	"github.com/specialistvlad/graphcraft/internal/registry"
	"github.com/specialistvlad/graphcraft/modules/print"
	"go.uber.org/multierr"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	ctx      context.Context
	config   *Config
	registry *registry.Registry
	modules  []registry.Module

	compiler *compiler.Compiler
	cache    *memo.Cache
	exec     *executor.Executor
	gpu      *gpuPath

	// gpuCompiler replaces the default compiler of the GPU path.
	gpuCompiler gpu.Compiler

	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// Without modules the CoreModules are installed, printing to outW.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) *App {
	logger := NewLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	if len(modules) == 0 {
		modules = CoreModules()
		for _, m := range modules {
			if p, ok := m.(*print.Module); ok {
				p.Out = outW
			}
		}
	}

	b := registry.NewBuilder(logger)
	if err := b.Install(modules...); err != nil {
		// A module that cannot register is a programmer error.
		panic(fmt.Errorf("failed to register modules: %w", err))
	}
	reg, err := b.Build()
	if err != nil {
		panic(fmt.Errorf("registry validation failed: %w", err))
	}
	logger.Debug("All Go modules registered.", "modules", len(modules), "identifiers", reg.Len())

	cache := memo.New(cfg.CacheSize)
	return &App{
		outW:     outW,
		logger:   logger,
		ctx:      ctx,
		config:   cfg,
		registry: reg,
		modules:  modules,
		compiler: compiler.New(reg),
		cache:    cache,
		exec:     executor.New(executor.WithCache(cache), executor.WithWorkers(cfg.WorkerCount), executor.WithLogger(logger)),
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Cache returns the value cache shared by all runs of the app.
func (a *App) Cache() *memo.Cache {
	return a.cache
}

// Close releases the resources held by modules and the GPU path.
func (a *App) Close() error {
	var err error
	for _, m := range a.modules {
		if c, ok := m.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	if a.gpu != nil {
		err = multierr.Append(err, a.gpu.Close())
	}
	return err
}
