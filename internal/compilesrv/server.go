package compilesrv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/specialistvlad/graphcraft/internal/artifact"
	"github.com/specialistvlad/graphcraft/internal/toolchain"
	"go.uber.org/multierr"
)

// ShutdownTimeout bounds the graceful shutdown of Server.
const ShutdownTimeout = 5 * time.Second

// Server is a configured compilation server.
type Server struct {
	cfg     *Config
	logger  *slog.Logger
	svc     *Service
	store   *artifact.BadgerStore
	handler http.Handler
}

// NewServer wires the service, its store and its metrics from cfg.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	profiles := toolchain.DefaultProfiles()
	if cfg.ProfilesPath != "" {
		p, err := toolchain.LoadProfiles(cfg.ProfilesPath)
		if err != nil {
			return nil, err
		}
		profiles = p
	}

	var (
		store *artifact.BadgerStore
		err   error
	)
	if cfg.CacheDir != "" {
		store, err = artifact.OpenBadger(artifact.BadgerConfig{Dir: cfg.CacheDir, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("open artifact store: %w", err)
		}
	}
	var cacheStore artifact.Store
	if store != nil {
		cacheStore = store
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := NewService(profiles,
		WithCache(artifact.NewCache(cacheStore, logger)),
		WithTimeout(cfg.Timeout),
		WithMaxConcurrent(cfg.MaxConcurrent),
		WithWorkRoot(cfg.WorkRoot),
		WithLogger(logger),
		WithMetrics(NewMetrics(reg)),
	)
	return &Server{
		cfg:     cfg,
		logger:  logger,
		svc:     svc,
		store:   store,
		handler: NewHandler(svc, reg, logger),
	}, nil
}

// Handler is the HTTP API.
func (s *Server) Handler() http.Handler { return s.handler }

// Service is the in-process service behind the API.
func (s *Server) Service() *Service { return s.svc }

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully and closes the artifact store.
func (s *Server) Serve(ctx context.Context, ln net.Listener) (err error) {
	srv := &http.Server{Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}
	defer func() {
		if s.store != nil {
			err = multierr.Append(err, s.store.Close())
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Compilation server listening.", "address", ln.Addr().String(), "profiles", s.svc.Profiles())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down compilation server.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// ListenAndServe listens on cfg.Addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		if s.store != nil {
			err = multierr.Append(err, s.store.Close())
		}
		return err
	}
	return s.Serve(ctx, ln)
}
