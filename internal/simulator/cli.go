package simulator

import (
	"fmt"
	"os"

	"github.com/simonaseno/nhanes/pkg/logger"
)

// SetupLogging initializes the process logger for a simulation run.
func SetupLogging(verbose bool) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		if err := logger.SetLevelString("debug"); err != nil {
			return fmt.Errorf("failed to set log level: %w", err)
		}
	}
	return nil
}

// ShowHelp prints usage information for the survey simulation tool.
func ShowHelp() {
	os.Stdout.WriteString(`Survey Pipeline Simulator
=========================

Synthesizes a multi-cycle survey, serves it from a local origin, runs
the full acquisition pipeline against it, and verifies the persisted
artifacts against the synthetic source of truth.

Usage:
  go run cmd/survey-sim/main.go [options]

Options:
  -seed int
        Generator seed; equal seeds reproduce the same survey (default 1)
  -cycles int
        Number of two-year cycles to synthesize (default 3)
  -rows int
        Participants enrolled per cycle (default 500)
  -workers int
        Number of pipeline workers (default 4)
  -fail-every int
        Refuse every Nth file with HTTP 500, 0 disables (default 0)
  -out string
        Artifact directory (default: survey_sim_TIMESTAMP)
  -timeout duration
        Per-file download timeout (default 30s)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Simulate with default settings
  go run cmd/survey-sim/main.go

  # Five cycles with injected failures
  go run cmd/survey-sim/main.go -cycles 5 -rows 2000 -fail-every 4

  # Reproduce a specific survey
  go run cmd/survey-sim/main.go -seed 42 -verbose
`)
}
