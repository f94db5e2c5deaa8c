// Package worker defines worker contracts for asynchronous file
// acquisition. Each task is fetched from the origin, decoded from the
// transport format, and tagged with its cycle provenance before being
// handed to the collector.
package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/simonaseno/nhanes/internal/adapters/mq/queue"
	"github.com/simonaseno/nhanes/internal/domain/model"
	"github.com/simonaseno/nhanes/internal/domain/table"
	"github.com/simonaseno/nhanes/pkg/logger"
	"github.com/simonaseno/nhanes/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 4
	defaultRawRoot        = "raw"
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Stages of an acquisition task, recorded on failed outcomes.
const (
	StageFetch = "fetch"
	StageParse = "parse"
)

// Task abstracts what workers read off the queue.
// Using the model.Task type for consistency.
type Task = model.Task

// Fetcher downloads one source entry into destDir and returns the
// local path of the downloaded file.
type Fetcher interface {
	Fetch(ctx context.Context, entry model.SourceEntry, destDir string) (string, error)
}

// Reader decodes a downloaded transport file into a table.
type Reader interface {
	ReadFile(path string) (*table.Table, error)
}

// Collector receives one outcome per task, in completion order.
type Collector interface {
	Collect(ctx context.Context, o Outcome)
}

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Task
}

// Outcome is the result of one acquisition task. Seq carries the
// registry position of the originating entry. Exactly one of Table
// and Err is set; Stage names the step that failed.
type Outcome struct {
	Seq   int
	Entry model.SourceEntry
	Table *table.Table
	Err   error
	Stage string
}

// Worker processes acquisition tasks using the provided interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	// A task already being processed is finished first.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing acquisition tasks.
type InMemoryWorker struct {
	queue     Queue
	fetcher   Fetcher
	reader    Reader
	collector Collector
	rawRoot   string
	name      string

	// Shutdown control
	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, fetcher Fetcher, reader Reader, collector Collector, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		fetcher:   fetcher,
		reader:    reader,
		collector: collector,
		rawRoot:   defaultRawRoot,
		name:      "worker", // default name
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"), // will be updated by options
	}

	// Apply all options
	for _, opt := range opts {
		opt(w)
	}

	// Set up logger with worker name if not already set
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	taskChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case task, ok := <-taskChan:
			if !ok {
				// Channel closed, worker should stop
				return
			}

			// Process the task
			if err := w.processTask(ctx, task); err != nil {
				w.logger.Warn(ctx, "task failed", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	// Signal shutdown
	w.signalStop()

	// Wait for worker to finish or context to timeout
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// signalStop closes the shutdown channel exactly once.
func (w *InMemoryWorker) signalStop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

// processTask runs one task through fetch, decode, and tag. Failures
// are reported to the collector so the run can account for every
// enqueued entry; they never abort the worker loop.
func (w *InMemoryWorker) processTask(ctx context.Context, task queue.Task) error {
	// Track overall task latency
	start := time.Now()
	defer func() {
		latency := time.Since(start).Milliseconds()
		metrics.RecordTaskDuration(float64(latency))
	}()

	destDir := filepath.Join(w.rawRoot, string(task.Category))
	path, err := w.fetcher.Fetch(ctx, task.Entry, destDir)
	if err != nil {
		metrics.RecordTaskError()
		w.collector.Collect(ctx, Outcome{Seq: task.Seq, Entry: task.Entry, Err: err, Stage: StageFetch})
		return fmt.Errorf("fetching %s: %w", task.Entry.File, err)
	}

	parseStart := time.Now()
	tbl, err := w.reader.ReadFile(path)
	parseLatency := time.Since(parseStart).Milliseconds()
	metrics.RecordParseDuration(float64(parseLatency))

	if err != nil {
		metrics.RecordParseFailure()
		metrics.RecordTaskError()
		w.collector.Collect(ctx, Outcome{Seq: task.Seq, Entry: task.Entry, Err: err, Stage: StageParse})
		return fmt.Errorf("decoding %s: %w", task.Entry.File, err)
	}
	metrics.RecordFileParsed()
	metrics.RecordRowsParsed(tbl.NumRows())

	tagged := tbl.Tagged(task.Entry.Cycle, task.Entry.LocalName())
	w.logger.Debug(ctx, "task complete",
		logger.String("file", task.Entry.File),
		logger.String("cycle", task.Entry.Cycle),
		logger.Int("rows", tagged.NumRows()),
	)

	w.collector.Collect(ctx, Outcome{Seq: task.Seq, Entry: task.Entry, Table: tagged})
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers   []*InMemoryWorker
	queue     Queue
	fetcher   Fetcher
	reader    Reader
	collector Collector

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool. Options are applied to every
// worker in the pool.
func NewPool(workerCount int, queue Queue, fetcher Fetcher, reader Reader, collector Collector, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	pool := &Pool{
		workers:   make([]*InMemoryWorker, workerCount),
		queue:     queue,
		fetcher:   fetcher,
		reader:    reader,
		collector: collector,
		logger:    logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		workerOpts := append(append([]Option{}, opts...), WithName("worker-"+strconv.Itoa(i)))
		pool.workers[i] = NewInMemoryWorker(
			queue,
			fetcher,
			reader,
			collector,
			workerOpts...,
		)
	}

	// Initialize worker metrics
	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	// Signal shutdown to all workers
	for _, worker := range p.workers {
		worker.signalStop()
	}

	// Wait for all workers to finish
	for _, worker := range p.workers {
		select {
		case <-worker.done:
			// Worker finished
		case <-time.After(workerShutdownTimeout):
			// Worker timeout
		}
	}
}

// Shutdown gracefully shuts down the entire worker pool.
func (p *Pool) Shutdown(ctx context.Context) error {
	// First close the queue to stop new tasks
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	// Signal shutdown to all workers
	for _, worker := range p.workers {
		worker.signalStop()
	}

	// Wait for all workers to finish or context to timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	return nil
}
