package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/specialistvlad/graphcraft/internal/app"
	"github.com/specialistvlad/graphcraft/internal/cli"
	"github.com/specialistvlad/graphcraft/internal/registry"
)

// main is the entrypoint for the graphcraft application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Args[1:])
	stop()
	os.Exit(cli.Report(os.Stderr, err))
}

// run encapsulates the main application logic for easier testing and error
// handling. Without modules the built-in ones are installed.
func run(ctx context.Context, outW io.Writer, args []string, modules ...registry.Module) (err error) {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	// NewApp panics when the registry cannot be built.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("application startup panicked: %v", r)
		}
	}()

	a := app.NewApp(outW, appConfig, modules...)
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return a.Run(ctx)
}
