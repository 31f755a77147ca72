package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/specialistvlad/graphcraft/internal/app"
	"github.com/specialistvlad/graphcraft/internal/cli"
	"github.com/specialistvlad/graphcraft/internal/compilesrv"
)

// main is the entrypoint of the shader compilation server.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Args[1:], nil)
	stop()
	os.Exit(cli.Report(os.Stderr, err))
}

// run serves until ctx is done. ready, when set, receives the bound address.
func run(ctx context.Context, outW io.Writer, args []string, ready chan<- string) error {
	cfg, shouldExit, err := cli.ParseServer(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	logger := app.NewLogger(cfg.LogLevel, cfg.LogFormat, outW)
	slog.SetDefault(logger)

	srv, err := compilesrv.NewServer(cfg, logger)
	if err != nil {
		return err
	}
	if ready == nil {
		return srv.ListenAndServe(ctx)
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	ready <- ln.Addr().String()
	return srv.Serve(ctx, ln)
}
