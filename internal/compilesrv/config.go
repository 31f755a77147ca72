package compilesrv

import (
	"errors"
	"time"
)

// Config holds the settings of a compilation server.
type Config struct {
	Addr          string
	ProfilesPath  string
	Timeout       time.Duration
	MaxConcurrent int
	// CacheDir holds the persistent artifact store. Empty keeps artifacts
	// in memory only.
	CacheDir string
	// WorkRoot is the parent of the per-request work directories. Empty
	// means the system temporary directory.
	WorkRoot string

	LogFormat string
	LogLevel  string
}

// Defaults used by NewConfig for zero fields.
const (
	DefaultAddr          = ":8750"
	DefaultTimeout       = 30 * time.Second
	DefaultMaxConcurrent = 4
)

// NewConfig fills defaults and validates cfg.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.Timeout < 0 {
		return nil, errors.New("timeout must be positive")
	}
	if cfg.MaxConcurrent < 0 {
		return nil, errors.New("max-concurrent must be positive")
	}
	return &cfg, nil
}
