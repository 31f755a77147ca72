package app

import (
	"errors"
	"fmt"
	"strings"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	GraphPath string // .hcl file or directory, or a .json document
	// OutputPath receives the results. "-" writes JSON to the output
	// writer; empty only logs them.
	OutputPath string
	// Inputs are "name=expression" assignments of main network inputs.
	Inputs []string
	// Nodes selects qualified node paths to evaluate in place of the
	// main network's exports.
	Nodes []string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	WorkerCount     int
	// CacheSize bounds the value cache; 0 is unbounded.
	CacheSize int
	Watch     bool

	GPU           bool
	CompileServer string // empty compiles in process
	Profile       string
	EmitShader    string
}

// Defaults used by NewConfig for zero fields.
const (
	DefaultWorkerCount = 4
	DefaultCacheSize   = 4096
)

func NewConfig(cfg Config) (*Config, error) {
	if cfg.GraphPath == "" {
		return nil, errors.New("GraphPath is a required configuration field and cannot be empty")
	}
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.WorkerCount < 0 {
		return nil, fmt.Errorf("worker count must be positive, got %d", cfg.WorkerCount)
	}
	if cfg.CacheSize < 0 {
		return nil, fmt.Errorf("cache size must not be negative, got %d", cfg.CacheSize)
	}
	if cfg.CompileServer != "" && !cfg.GPU {
		return nil, errors.New("a compile server is only used with the GPU path")
	}
	for _, in := range cfg.Inputs {
		if name, _, ok := strings.Cut(in, "="); !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("input %q must have the form name=value", in)
		}
	}
	return &cfg, nil
}
