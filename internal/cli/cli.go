package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/graphcraft/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// listFlag collects every occurrence of a repeatable flag.
type listFlag []string

func (f *listFlag) String() string { return strings.Join(*f, ", ") }

func (f *listFlag) Set(v string) error {
	*f = append(*f, v)
	return nil
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("graphcraft", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
Graphcraft - compiles node graphs and runs them on the CPU or a GPU device.

Usage:
  graphcraft [options] GRAPH_PATH

Arguments:
  GRAPH_PATH
    Path to a .hcl file, a directory of .hcl files, or a .json document.

Options:
`)
		flagSet.PrintDefaults()
	}

	var inputs, nodes listFlag
	flagSet.Var(&inputs, "input", "Main network input as name=value. Repeatable.")
	flagSet.Var(&nodes, "node", "Evaluate the node at this path (e.g. main.blur.kernel) instead of the exports. Repeatable.")
	outputFlag := flagSet.String("output", "", "Where to write results: a file (.png/.jpg/.bmp for images, JSON otherwise) or '-' for JSON on stdout.")
	oFlag := flagSet.String("o", "", "Output path (shorthand).")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", app.DefaultWorkerCount, "Number of nodes evaluated concurrently.")
	cacheFlag := flagSet.Int("cache-size", app.DefaultCacheSize, "Maximum number of cached node values. 0 is unbounded.")
	watchFlag := flagSet.Bool("watch", false, "Re-run whenever the graph files change.")
	gpuFlag := flagSet.Bool("gpu", false, "Compile the graph to a compute kernel and dispatch it.")
	serverFlag := flagSet.String("compile-server", "", "Base URL of a shaderd instance. Empty compiles in process.")
	profileFlag := flagSet.String("profile", "", "Toolchain profile for GPU compilation.")
	shaderFlag := flagSet.String("emit-shader", "", "Write the generated shader source to this path.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() == 0 {
		slog.Debug("No graph path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}
	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("expected one graph path, got %d", flagSet.NArg())}
	}

	logFormat, logLevel, err := validateLogging(*logFormatFlag, *logLevelFlag)
	if err != nil {
		return nil, false, err
	}

	out := *outputFlag
	if out == "" {
		out = *oFlag
	}

	config, err := app.NewConfig(app.Config{
		GraphPath:       flagSet.Arg(0),
		OutputPath:      out,
		Inputs:          inputs,
		Nodes:           nodes,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		HealthcheckPort: *healthPortFlag,
		WorkerCount:     *workersFlag,
		CacheSize:       *cacheFlag,
		Watch:           *watchFlag,
		GPU:             *gpuFlag,
		CompileServer:   *serverFlag,
		Profile:         *profileFlag,
		EmitShader:      *shaderFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

func validateLogging(format, level string) (string, string, error) {
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return "", "", &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	level = strings.ToLower(level)
	switch level {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return "", "", &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	return format, level, nil
}
