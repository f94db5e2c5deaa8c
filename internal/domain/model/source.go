// Package model contains domain models passed between layers.
package model

import "fmt"

// Category identifies which half of the merge a source file feeds.
type Category string

// Categories of survey files handled by the pipeline.
const (
	CategoryLab  Category = "lab"
	CategoryDemo Category = "demo"
)

// SourceEntry identifies one fixed-width survey file to acquire.
type SourceEntry struct {
	File  string // dataset name without extension, e.g. "TCHOL_D"
	Cycle string // survey cycle label, e.g. "2005-2006"
	Year  string // release-path year component, e.g. "2005"
}

// LocalName returns the on-disk file name for the entry.
func (e SourceEntry) LocalName() string {
	return e.File + ".xpt"
}

// Validate reports whether the entry carries everything needed to
// build a download URL and a provenance label.
func (e SourceEntry) Validate() error {
	if e.File == "" {
		return fmt.Errorf("%w: empty file name", ErrInvalidEntry)
	}
	if e.Cycle == "" {
		return fmt.Errorf("%w: entry %q has no cycle", ErrInvalidEntry, e.File)
	}
	if e.Year == "" {
		return fmt.Errorf("%w: entry %q has no year", ErrInvalidEntry, e.File)
	}
	return nil
}

// Task is one unit of acquisition work flowing through the queue.
// Seq preserves the registry position so results can be reassembled
// in registry order regardless of worker completion order.
type Task struct {
	Seq      int
	Category Category
	Entry    SourceEntry
}
