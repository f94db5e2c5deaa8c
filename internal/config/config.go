// Package config defines pipeline configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults, Load() to layer
//   the embedded source registry, an optional file, and env vars.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"fmt"
	"time"

	"github.com/simonaseno/nhanes/internal/domain/model"
)

// Default configuration values.
const (
	defaultBaseURL      = "https://wwwn.cdc.gov/Nchs/Data/Nhanes/Public"
	defaultOutputDir    = "data"
	defaultJoinKey      = "SEQN"
	defaultWorkerCount  = 4
	defaultQueueSize    = 64
	defaultFetchTimeout = 120 // seconds
)

// Source describes one survey file in a registry.
type Source struct {
	// File is the dataset name without extension, e.g. "TCHOL_D".
	File string `koanf:"file"`

	// Cycle is the provenance label, e.g. "2005-2006".
	Cycle string `koanf:"cycle"`

	// Year is the release-path component of the download URL.
	Year string `koanf:"year"`
}

// Entry converts the configured source into its domain form.
func (s Source) Entry() model.SourceEntry {
	return model.SourceEntry{File: s.File, Cycle: s.Cycle, Year: s.Year}
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// BaseURL is the origin serving the survey files.
	BaseURL string `koanf:"base_url"`

	// OutputDir receives raw downloads and run artifacts.
	OutputDir string `koanf:"output_dir"`

	// JoinKey names the identifier column shared by both categories.
	JoinKey string `koanf:"join_key"`

	// WorkerCount sets the number of acquisition workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory task queue.
	QueueSize int `koanf:"queue_size"`

	// FetchTimeoutSeconds bounds a single download.
	FetchTimeoutSeconds int `koanf:"fetch_timeout_seconds"`

	// StatusAddr configures the status listener, e.g. ":9080".
	// Empty disables it.
	StatusAddr string `koanf:"status_addr"`

	// LabFiles and DemoFiles are the two source registries, ordered
	// by survey cycle. The embedded registry covers the 1999-2010
	// total-cholesterol and demographics releases.
	LabFiles  []Source `koanf:"lab_files"`
	DemoFiles []Source `koanf:"demo_files"`
}

// New creates a Config with defaults. The source registries are left
// empty here; Load fills them from the embedded registry.
func New() *Config {
	c := &Config{
		LogLevel:            "info",
		BaseURL:             defaultBaseURL,
		OutputDir:           defaultOutputDir,
		JoinKey:             defaultJoinKey,
		WorkerCount:         defaultWorkerCount,
		QueueSize:           defaultQueueSize,
		FetchTimeoutSeconds: defaultFetchTimeout,
	}
	return c
}

// Validate checks that the fields required to run a pipeline are set
// and that every configured source is complete.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base_url must not be empty", ErrInvalidConfig)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output_dir must not be empty", ErrInvalidConfig)
	}
	if c.JoinKey == "" {
		return fmt.Errorf("%w: join_key must not be empty", ErrInvalidConfig)
	}
	if err := validateRegistry("lab_files", c.LabFiles); err != nil {
		return err
	}
	return validateRegistry("demo_files", c.DemoFiles)
}

// validateRegistry checks every entry and rejects file names repeated
// within the registry, which would collect the same file twice.
func validateRegistry(name string, sources []Source) error {
	seen := make(map[string]bool, len(sources))
	for _, s := range sources {
		if err := s.Entry().Validate(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, name, err)
		}
		if seen[s.File] {
			return fmt.Errorf("%w: %s lists %s twice", ErrInvalidConfig, name, s.File)
		}
		seen[s.File] = true
	}
	return nil
}

// LabEntries returns the lab registry in domain form, in registry order.
func (c *Config) LabEntries() []model.SourceEntry {
	return entries(c.LabFiles)
}

// DemoEntries returns the demographics registry in domain form, in
// registry order.
func (c *Config) DemoEntries() []model.SourceEntry {
	return entries(c.DemoFiles)
}

func entries(sources []Source) []model.SourceEntry {
	out := make([]model.SourceEntry, len(sources))
	for i, s := range sources {
		out[i] = s.Entry()
	}
	return out
}

// FetchTimeout returns the per-download timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}
