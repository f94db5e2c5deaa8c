// Package worker defines worker contracts for asynchronous file
// acquisition.
package worker

import (
	"github.com/simonaseno/nhanes/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithRawRoot sets the directory under which downloaded files are
// staged, one subdirectory per category.
func WithRawRoot(dir string) Option {
	return func(w *InMemoryWorker) {
		if dir != "" {
			w.rawRoot = dir
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}
