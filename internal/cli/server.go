package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/specialistvlad/graphcraft/internal/compilesrv"
)

// ParseServer processes the arguments of the compilation server.
func ParseServer(args []string, output io.Writer) (*compilesrv.Config, bool, error) {
	flagSet := flag.NewFlagSet("shaderd", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
shaderd - compiles generated shaders for graphcraft clients.

Usage:
  shaderd [options]

Options:
`)
		flagSet.PrintDefaults()
	}

	addrFlag := flagSet.String("addr", compilesrv.DefaultAddr, "Address to listen on.")
	profilesFlag := flagSet.String("profiles", "", "YAML file with toolchain profiles. Empty uses the built-in profiles.")
	timeoutFlag := flagSet.Duration("timeout", compilesrv.DefaultTimeout, "Upper bound of a single compilation.")
	concurrentFlag := flagSet.Int("max-concurrent", compilesrv.DefaultMaxConcurrent, "Number of compilations run at once.")
	cacheDirFlag := flagSet.String("cache-dir", "", "Directory of the persistent artifact store. Empty keeps artifacts in memory.")
	workRootFlag := flagSet.String("work-root", "", "Parent of per-request work directories.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if flagSet.NArg() > 0 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected argument %q", flagSet.Arg(0))}
	}

	logFormat, logLevel, err := validateLogging(*logFormatFlag, *logLevelFlag)
	if err != nil {
		return nil, false, err
	}

	config, err := compilesrv.NewConfig(compilesrv.Config{
		Addr:          *addrFlag,
		ProfilesPath:  *profilesFlag,
		Timeout:       *timeoutFlag,
		MaxConcurrent: *concurrentFlag,
		CacheDir:      *cacheDirFlag,
		WorkRoot:      *workRootFlag,
		LogFormat:     logFormat,
		LogLevel:      logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	return config, false, nil
}
