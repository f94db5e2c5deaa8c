// Package service orchestrates the pipeline: acquire the configured
// source files for each category, combine them across cycles, join the
// two categories on the shared identifier, and persist every table as
// paired snapshot and text artifacts.
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/simonaseno/nhanes/internal/adapters/fetch"
	taskqueue "github.com/simonaseno/nhanes/internal/adapters/mq/queue"
	workerpool "github.com/simonaseno/nhanes/internal/adapters/mq/worker"
	"github.com/simonaseno/nhanes/internal/adapters/store"
	"github.com/simonaseno/nhanes/internal/adapters/xpt"
	"github.com/simonaseno/nhanes/internal/domain/combine"
	"github.com/simonaseno/nhanes/internal/domain/join"
	"github.com/simonaseno/nhanes/internal/domain/model"
	"github.com/simonaseno/nhanes/internal/domain/table"
	"github.com/simonaseno/nhanes/pkg/logger"
	"github.com/simonaseno/nhanes/pkg/metrics"
)

// Artifact base names, fixed across runs.
const (
	labArtifact    = "lab_combined"
	demoArtifact   = "demo_combined"
	mergedArtifact = "merged"
)

// rawDirName is the staging directory for downloads, one subdirectory
// per category.
const rawDirName = "raw"

// demoSuffix disambiguates demographic columns whose names collide
// with laboratory columns in the merged table.
const demoSuffix = "_demo"

// Service states surfaced through GetStats.
const (
	stateIdle    = "idle"
	stateRunning = "running"
	stateDone    = "done"
	stateFailed  = "failed"
)

// Run phases surfaced through GetStats.
const (
	phaseCollectLab  = "collect_lab"
	phaseCollectDemo = "collect_demo"
	phaseJoin        = "join"
)

// Default configuration values.
const (
	defaultWorkerCount = 4
	defaultQueueSize   = 64
	defaultOutputDir   = "data"
	defaultJoinKey     = "SEQN"
)

// xptReader adapts the transport codec to the worker pool's Reader.
type xptReader struct{}

func (xptReader) ReadFile(path string) (*table.Table, error) {
	return xpt.ReadFile(path)
}

// Service runs the survey assembly pipeline end to end.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   store.Store
	fetcher *fetch.Client

	// Configuration
	workerCount  int
	queueSize    int
	outputDir    string
	baseURL      string
	joinKey      string
	fetchTimeout time.Duration
	labSources   []model.SourceEntry
	demoSources  []model.SourceEntry

	// State surfaced through GetStats
	state   string
	phase   string
	runID   string
	started time.Time
	sink    *resultSink

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of acquisition workers. A count of
// one reproduces strict sequential, in-registry-order processing.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the acquisition task queue. It
// must be able to hold the larger category registry in full.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithOutputDir sets the directory receiving raw downloads and
// artifacts.
func WithOutputDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.outputDir = dir
		}
	}
}

// WithBaseURL points the pipeline at a different origin.
func WithBaseURL(url string) Option {
	return func(s *Service) {
		if url != "" {
			s.baseURL = url
		}
	}
}

// WithJoinKey sets the identifier column joining the two categories.
func WithJoinKey(key string) Option {
	return func(s *Service) {
		if key != "" {
			s.joinKey = key
		}
	}
}

// WithFetchTimeout sets the per-request download timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithSources sets the two source registries in configured order.
func WithSources(lab, demo []model.SourceEntry) Option {
	return func(s *Service) {
		s.labSources = lab
		s.demoSources = demo
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: defaultWorkerCount,
		queueSize:   defaultQueueSize,
		outputDir:   defaultOutputDir,
		joinKey:     defaultJoinKey,
		state:       stateIdle,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run executes one full pipeline pass: collect and persist both
// categories, then join the persisted snapshots and persist the merged
// result. Fetch and decode failures skip their entry with a warning;
// persistence failures abort the run.
func (s *Service) Run(ctx context.Context) (*RunReport, error) {
	runID, err := s.beginRun()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	report := &RunReport{RunID: runID, Started: started}

	s.logger.Info(ctx, "run started",
		logger.String("run_id", runID),
		logger.Int("workers", s.workerCount),
		logger.Int("lab_files", len(s.labSources)),
		logger.Int("demo_files", len(s.demoSources)),
	)

	err = s.assemble(ctx, report)
	report.Elapsed = time.Since(started)
	metrics.RecordRunDuration(float64(report.Elapsed.Milliseconds()))
	if err != nil {
		metrics.RecordRunFailure()
		s.endRun(stateFailed)
		s.logger.Error(ctx, "run failed", logger.String("run_id", runID), logger.Error(err))
		return nil, err
	}

	metrics.RecordRunCompleted()
	s.endRun(stateDone)
	s.logger.Info(ctx, "run complete",
		logger.String("run_id", runID),
		logger.Int("merged_rows", report.Merged.Rows),
		logger.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

// JoinFromSnapshots runs only the join phase, against category
// snapshots persisted by an earlier run.
func (s *Service) JoinFromSnapshots(ctx context.Context) (*RunReport, error) {
	runID, err := s.beginRun()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	report := &RunReport{
		RunID:   runID,
		Started: started,
		Lab:     CategoryReport{Category: model.CategoryLab},
		Demo:    CategoryReport{Category: model.CategoryDemo},
	}

	merged, err := s.joinSnapshots(ctx)
	report.Elapsed = time.Since(started)
	metrics.RecordRunDuration(float64(report.Elapsed.Milliseconds()))
	if err != nil {
		metrics.RecordRunFailure()
		s.endRun(stateFailed)
		s.logger.Error(ctx, "join-only run failed", logger.String("run_id", runID), logger.Error(err))
		return nil, err
	}

	report.Merged = merged
	metrics.RecordRunCompleted()
	s.endRun(stateDone)
	return report, nil
}

// assemble walks the run phases in order, filling report as it goes.
func (s *Service) assemble(ctx context.Context, report *RunReport) error {
	lab, err := s.collectCategory(ctx, phaseCollectLab, model.CategoryLab, s.labSources)
	if err != nil {
		return err
	}
	report.Lab = lab

	demo, err := s.collectCategory(ctx, phaseCollectDemo, model.CategoryDemo, s.demoSources)
	if err != nil {
		return err
	}
	report.Demo = demo

	merged, err := s.joinSnapshots(ctx)
	if err != nil {
		return err
	}
	report.Merged = merged
	return nil
}

// collectCategory acquires every entry of one category, combines the
// survivors in registry order, and persists the combined snapshot.
func (s *Service) collectCategory(ctx context.Context, phase string, category model.Category, entries []model.SourceEntry) (CategoryReport, error) {
	report := CategoryReport{Category: category}

	outcomes, err := s.acquire(ctx, phase, category, entries)
	if err != nil {
		return report, err
	}

	tables := make([]*table.Table, 0, len(outcomes))
	for _, o := range outcomes {
		entry := EntryOutcome{File: o.Entry.File, Cycle: o.Entry.Cycle}
		if o.Err != nil {
			entry.Stage = o.Stage
			entry.Err = o.Err.Error()
			metrics.RecordEntrySkipped()
			s.logger.Warn(ctx, "entry skipped",
				logger.String("file", o.Entry.File),
				logger.String("cycle", o.Entry.Cycle),
				logger.String("stage", o.Stage),
				logger.Error(o.Err),
			)
		} else {
			entry.Rows = o.Table.NumRows()
			tables = append(tables, o.Table)
		}
		report.Entries = append(report.Entries, entry)
	}

	combined := combine.Stack(tables)
	report.Rows = combined.NumRows()
	metrics.UpdateCombinedRows(string(category), combined.NumRows())
	s.logger.Info(ctx, "category combined",
		logger.String("category", string(category)),
		logger.Int("files", len(tables)),
		logger.Int("rows", combined.NumRows()),
	)

	arts, err := s.store.Persist(ctx, combined, filepath.Join(s.outputDir, artifactName(category)))
	if err != nil {
		return report, fmt.Errorf("persist %s snapshot: %w", category, err)
	}
	report.Binary = arts.Binary
	report.Text = arts.Text
	return report, nil
}

// acquire pushes one task per entry through the worker pool and
// returns every outcome in registry order. Tasks are enqueued up front
// so the queue must hold the whole registry; workers then drain it
// concurrently. Fetch and decode failures travel inside outcomes, not
// as errors.
func (s *Service) acquire(ctx context.Context, phase string, category model.Category, entries []model.SourceEntry) ([]workerpool.Outcome, error) {
	sink := newResultSink(len(entries))
	s.setPhase(phase, sink)
	if len(entries) == 0 {
		return nil, nil
	}

	q := taskqueue.NewInMemoryQueue(
		taskqueue.WithCapacity(s.queueSize),
		taskqueue.WithBufferSize(s.queueSize),
	)
	for i, entry := range entries {
		task := model.Task{Seq: i, Category: category, Entry: entry}
		if !q.Enqueue(ctx, task) {
			_ = q.Close()
			return nil, fmt.Errorf("enqueue %s: %w: queue size %d cannot hold %d entries",
				entry.File, taskqueue.ErrFull, s.queueSize, len(entries))
		}
	}

	pool := workerpool.NewPool(s.workerCount, q, s.fetcher, xptReader{}, sink,
		workerpool.WithRawRoot(filepath.Join(s.outputDir, rawDirName)),
	)
	pool.Start(ctx)

	select {
	case <-sink.completed():
	case <-ctx.Done():
		_ = pool.Shutdown(context.Background())
		return nil, fmt.Errorf("collect %s: %w", category, ctx.Err())
	}

	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	return sink.ordered(), nil
}

// joinSnapshots reloads the two persisted category snapshots, joins
// them on the key column, and persists the merged result. Reading back
// from disk keeps the join phase independent of the collection phase,
// so it can also run against snapshots from an earlier process.
func (s *Service) joinSnapshots(ctx context.Context) (MergedReport, error) {
	s.setPhase(phaseJoin, nil)

	lab, err := s.store.Load(ctx, filepath.Join(s.outputDir, labArtifact))
	if err != nil {
		return MergedReport{}, fmt.Errorf("load lab snapshot: %w", err)
	}
	demo, err := s.store.Load(ctx, filepath.Join(s.outputDir, demoArtifact))
	if err != nil {
		return MergedReport{}, fmt.Errorf("load demo snapshot: %w", err)
	}

	started := time.Now()
	merged, err := join.Inner(lab, demo, s.joinKey, join.WithRightSuffix(demoSuffix))
	if err != nil {
		return MergedReport{}, fmt.Errorf("join snapshots on %s: %w", s.joinKey, err)
	}
	metrics.RecordJoinDuration(float64(time.Since(started).Milliseconds()))
	metrics.UpdateJoinedRows(merged.NumRows())
	s.logger.Info(ctx, "snapshots joined",
		logger.String("key", s.joinKey),
		logger.Int("lab_rows", lab.NumRows()),
		logger.Int("demo_rows", demo.NumRows()),
		logger.Int("merged_rows", merged.NumRows()),
	)

	arts, err := s.store.Persist(ctx, merged, filepath.Join(s.outputDir, mergedArtifact))
	if err != nil {
		return MergedReport{}, fmt.Errorf("persist merged table: %w", err)
	}
	return MergedReport{Rows: merged.NumRows(), Binary: arts.Binary, Text: arts.Text}, nil
}

// GetStats returns pipeline statistics for the status surface.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"state":        s.state,
		"worker_count": s.workerCount,
		"queue_size":   s.queueSize,
		"output_dir":   s.outputDir,
		"join_key":     s.joinKey,
		"lab_files":    len(s.labSources),
		"demo_files":   len(s.demoSources),
	}

	if s.runID != "" {
		stats["run_id"] = s.runID
		stats["started"] = s.started.UTC().Format(time.RFC3339)
	}
	if s.phase != "" {
		stats["phase"] = s.phase
	}
	if s.sink != nil {
		succeeded, skipped := s.sink.counts()
		stats["entries_succeeded"] = succeeded
		stats["entries_skipped"] = skipped
	}

	return stats
}

// beginRun transitions the service into a running state and resolves
// collaborators that options did not provide.
func (s *Service) beginRun() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateRunning {
		return "", ErrRunActive
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("pipeline")
	}
	if s.store == nil {
		s.store = store.NewFileStore()
	}
	if s.fetcher == nil {
		var opts []fetch.Option
		if s.baseURL != "" {
			opts = append(opts, fetch.WithBaseURL(s.baseURL))
		}
		if s.fetchTimeout > 0 {
			opts = append(opts, fetch.WithTimeout(s.fetchTimeout))
		}
		s.fetcher = fetch.NewClient(opts...)
	}

	s.state = stateRunning
	s.runID = uuid.New().String()
	s.started = time.Now()
	s.phase = ""
	s.sink = nil
	return s.runID, nil
}

func (s *Service) endRun(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.phase = ""
}

func (s *Service) setPhase(phase string, sink *resultSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
	if sink != nil {
		s.sink = sink
	}
}

func artifactName(category model.Category) string {
	if category == model.CategoryDemo {
		return demoArtifact
	}
	return labArtifact
}

// resultSink gathers worker outcomes and signals once every expected
// task has reported.
type resultSink struct {
	mu       sync.Mutex
	want     int
	outcomes []workerpool.Outcome
	done     chan struct{}
}

func newResultSink(want int) *resultSink {
	return &resultSink{want: want, done: make(chan struct{})}
}

// Collect implements the worker pool's Collector.
func (r *resultSink) Collect(ctx context.Context, o workerpool.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	if len(r.outcomes) == r.want {
		close(r.done)
	}
}

// completed closes once all expected outcomes have arrived.
func (r *resultSink) completed() <-chan struct{} {
	return r.done
}

// ordered returns the outcomes sorted back into registry order.
func (r *resultSink) ordered() []workerpool.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]workerpool.Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// counts reports how many outcomes have arrived, split by success.
func (r *resultSink) counts() (succeeded, skipped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.outcomes {
		if o.Err != nil {
			skipped++
			continue
		}
		succeeded++
	}
	return succeeded, skipped
}
