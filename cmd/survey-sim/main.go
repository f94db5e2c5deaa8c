package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/simonaseno/nhanes/internal/simulator"
)

// Default configuration constants.
const (
	defaultSeed         = 1
	defaultCycles       = 3
	defaultRowsPerCycle = 500
	defaultWorkers      = 4
	defaultTimeout      = 30 * time.Second
	defaultSimTimeout   = 10 * time.Minute
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		seed      = flag.Int64("seed", defaultSeed, "Generator seed; equal seeds reproduce the same survey")
		cycles    = flag.Int("cycles", defaultCycles, "Number of two-year cycles to synthesize")
		rows      = flag.Int("rows", defaultRowsPerCycle, "Participants enrolled per cycle")
		workers   = flag.Int("workers", defaultWorkers, "Number of pipeline workers")
		failEvery = flag.Int("fail-every", 0, "Refuse every Nth file with HTTP 500, 0 disables")
		outputDir = flag.String("out", "", "Artifact directory (default: survey_sim_TIMESTAMP)")
		timeout   = flag.Duration("timeout", defaultTimeout, "Per-file download timeout")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulator.ShowHelp()
		return 0
	}

	// Setup logging
	if err := simulator.SetupLogging(*verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return 1
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultSimTimeout)
	defer cancel()

	// Create simulation configuration
	config := &simulator.Config{
		Seed:         *seed,
		Cycles:       *cycles,
		RowsPerCycle: *rows,
		Workers:      *workers,
		FailEvery:    *failEvery,
		OutputDir:    *outputDir,
		Timeout:      *timeout,
		Verbose:      *verbose,
	}

	// Run the simulation
	if err := simulator.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return 1
	}
	return 0
}
