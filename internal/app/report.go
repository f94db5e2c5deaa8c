package service

import (
	"fmt"
	"io"
	"time"

	"github.com/simonaseno/nhanes/internal/domain/model"
)

// EntryOutcome records how one registry entry fared during collection.
type EntryOutcome struct {
	File  string
	Cycle string
	Rows  int
	Stage string // failing pipeline stage, empty on success
	Err   string // failure description, empty on success
}

// Skipped reports whether the entry was dropped from its combined table.
func (o EntryOutcome) Skipped() bool {
	return o.Err != ""
}

// CategoryReport summarizes the collection of one source category.
type CategoryReport struct {
	Category model.Category
	Entries  []EntryOutcome
	Rows     int
	Binary   string
	Text     string
}

// Succeeded counts entries whose rows made it into the combined table.
func (r CategoryReport) Succeeded() int {
	n := 0
	for _, e := range r.Entries {
		if !e.Skipped() {
			n++
		}
	}
	return n
}

// Skipped counts entries dropped after fetch or decode failures.
func (r CategoryReport) Skipped() int {
	return len(r.Entries) - r.Succeeded()
}

// MergedReport summarizes the join output.
type MergedReport struct {
	Rows   int
	Binary string
	Text   string
}

// RunReport is the user-facing account of one pipeline run. Every
// configured entry appears exactly once in its category section, so
// skipped files are always visible in the summary.
type RunReport struct {
	RunID   string
	Started time.Time
	Elapsed time.Duration
	Lab     CategoryReport
	Demo    CategoryReport
	Merged  MergedReport
}

// Render writes the human-readable run summary.
func (r *RunReport) Render(w io.Writer) {
	fmt.Fprintf(w, "run %s finished in %s\n", r.RunID, r.Elapsed.Round(time.Millisecond))
	renderCategory(w, r.Lab)
	renderCategory(w, r.Demo)
	fmt.Fprintf(w, "merged: %d rows\n", r.Merged.Rows)
	renderArtifacts(w, r.Merged.Binary, r.Merged.Text)
}

func renderCategory(w io.Writer, r CategoryReport) {
	// Join-only runs collect nothing and write no category artifacts.
	if len(r.Entries) == 0 && r.Binary == "" {
		return
	}
	fmt.Fprintf(w, "%s: %d/%d files, %d rows\n", r.Category, r.Succeeded(), len(r.Entries), r.Rows)
	for _, e := range r.Entries {
		if !e.Skipped() {
			continue
		}
		fmt.Fprintf(w, "  skipped %s (%s): %s: %s\n", e.File, e.Cycle, e.Stage, e.Err)
	}
	renderArtifacts(w, r.Binary, r.Text)
}

func renderArtifacts(w io.Writer, binary, text string) {
	if binary == "" && text == "" {
		return
	}
	fmt.Fprintf(w, "  wrote %s, %s\n", binary, text)
}
