// Package simulator synthesizes a multi-cycle survey, hosts it on a
// local origin, runs the acquisition pipeline against it, and checks
// the persisted artifacts against the synthetic source of truth.
package simulator

import (
	"time"

	"github.com/simonaseno/nhanes/internal/domain/model"
	"github.com/simonaseno/nhanes/internal/domain/table"
)

// Config holds configuration for a simulation run
type Config struct {
	Seed         int64         // Generator seed; equal seeds reproduce the same survey
	Cycles       int           // Number of two-year cycles to synthesize
	RowsPerCycle int           // Participants enrolled per cycle
	Workers      int           // Pipeline worker count
	FailEvery    int           // Refuse every Nth file with HTTP 500 (0 disables)
	OutputDir    string        // Artifact directory; timestamped default when empty
	Timeout      time.Duration // Per-file download timeout
	Verbose      bool          // Enable verbose logging
}

// CycleFile is one synthesized source file together with its registry
// entry and whether the origin should refuse it.
type CycleFile struct {
	Entry model.SourceEntry
	Table *table.Table
	Fail  bool
}

// World is the synthetic source of truth a run is verified against.
type World struct {
	Lab  []CycleFile
	Demo []CycleFile
}

// LabEntries returns the laboratory registry in cycle order.
func (w *World) LabEntries() []model.SourceEntry { return entries(w.Lab) }

// DemoEntries returns the demographics registry in cycle order.
func (w *World) DemoEntries() []model.SourceEntry { return entries(w.Demo) }

func entries(files []CycleFile) []model.SourceEntry {
	out := make([]model.SourceEntry, len(files))
	for i, f := range files {
		out[i] = f.Entry
	}
	return out
}

// Stats holds simulation statistics
type Stats struct {
	FilesSynthesized int
	RowsSynthesized  int
	FilesServed      int
	FilesRefused     int
	LabRows          int
	DemoRows         int
	MergedRows       int
	ChecksPassed     int
	ChecksFailed     int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
