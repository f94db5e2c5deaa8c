package simulator

import (
	"context"
	"fmt"
	"time"

	service "github.com/simonaseno/nhanes/internal/app"
	"github.com/simonaseno/nhanes/pkg/logger"
)

// Reporting constants.
const (
	percentageMultiplier = 100
)

// Run executes the complete synthetic survey exercise.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting survey simulation",
		logger.Any("seed", config.Seed),
		logger.Int("cycles", config.Cycles),
		logger.Int("rows_per_cycle", config.RowsPerCycle),
		logger.Int("workers", config.Workers),
		logger.Int("fail_every", config.FailEvery),
		logger.String("output_dir", config.OutputDir))

	// Step 1: Synthesize the survey
	world, err := generateWorld(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("survey synthesis failed: %w", err)
	}

	// Step 2: Host it on a local origin
	origin := NewOrigin()
	if err := loadOrigin(origin, world); err != nil {
		return fmt.Errorf("origin setup failed: %w", err)
	}
	baseURL, err := origin.Start()
	if err != nil {
		return fmt.Errorf("origin start failed: %w", err)
	}
	defer func() {
		if err := origin.Stop(context.Background()); err != nil {
			logger.Get().Warn(context.Background(), "failed to stop origin", logger.Error(err))
		}
	}()
	logger.Get().Info(ctx, "origin serving", logger.String("base_url", baseURL))

	// Step 3: Run the pipeline against the origin
	outputDir := config.OutputDir
	if outputDir == "" {
		timestamp := time.Now().Format("20060102_150405")
		outputDir = "survey_sim_" + timestamp
	}
	report, err := runPipeline(ctx, config, world, baseURL, outputDir)
	if err != nil {
		return fmt.Errorf("pipeline run failed: %w", err)
	}
	stats.LabRows = report.Lab.Rows
	stats.DemoRows = report.Demo.Rows
	stats.MergedRows = report.Merged.Rows
	stats.FilesServed, stats.FilesRefused = origin.Counts()

	// Step 4: Verify the artifacts against the synthesized survey
	if err := verifyArtifacts(ctx, world, report, outputDir, stats); err != nil {
		return fmt.Errorf("artifact verification failed: %w", err)
	}

	// Step 5: Replay the join from the persisted snapshots
	if err := replayJoin(ctx, report, outputDir); err != nil {
		return fmt.Errorf("snapshot replay failed: %w", err)
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// loadOrigin registers every synthesized file, routing marked ones to
// refusal instead.
func loadOrigin(origin *Origin, world *World) error {
	for _, f := range append(append([]CycleFile{}, world.Lab...), world.Demo...) {
		if f.Fail {
			origin.Refuse(f.Entry.Year, f.Entry.File, refusalStatus)
			continue
		}
		if err := origin.AddTable(f.Entry.Year, f.Entry.File, f.Table); err != nil {
			return err
		}
	}
	return nil
}

// runPipeline points a pipeline service at the origin and runs it to
// completion.
func runPipeline(ctx context.Context, config *Config, world *World, baseURL, outputDir string) (*service.RunReport, error) {
	opts := []service.Option{
		service.WithBaseURL(baseURL),
		service.WithOutputDir(outputDir),
		service.WithSources(world.LabEntries(), world.DemoEntries()),
	}
	if config.Workers > 0 {
		opts = append(opts, service.WithWorkerCount(config.Workers))
	}
	if config.Timeout > 0 {
		opts = append(opts, service.WithFetchTimeout(config.Timeout))
	}

	svc := service.New(opts...)
	report, err := svc.Run(ctx)
	if err != nil {
		return nil, err
	}

	logger.Get().Info(ctx, "pipeline finished",
		logger.String("run_id", report.RunID),
		logger.Int("lab_rows", report.Lab.Rows),
		logger.Int("demo_rows", report.Demo.Rows),
		logger.Int("merged_rows", report.Merged.Rows),
		logger.Duration("elapsed", report.Elapsed))
	return report, nil
}

// replayJoin rebuilds the merged table from the persisted snapshots
// with a fresh service and confirms it matches the full run.
func replayJoin(ctx context.Context, report *service.RunReport, outputDir string) error {
	joinOnly := service.New(service.WithOutputDir(outputDir))
	replay, err := joinOnly.JoinFromSnapshots(ctx)
	if err != nil {
		return err
	}
	if replay.Merged.Rows != report.Merged.Rows {
		return fmt.Errorf("replayed join produced %d rows, full run produced %d", replay.Merged.Rows, report.Merged.Rows)
	}
	logger.Get().Info(ctx, "snapshot replay matched the full run", logger.Int("rows", replay.Merged.Rows))
	return nil
}

// displayFinalStats prints the final simulation statistics.
func displayFinalStats(stats *Stats) {
	var checkSuccessRate, rowsPerSecond float64

	totalChecks := stats.ChecksPassed + stats.ChecksFailed
	if totalChecks > 0 {
		checkSuccessRate = float64(stats.ChecksPassed) / float64(totalChecks) * percentageMultiplier
	}

	if stats.Duration > 0 {
		rowsPerSecond = float64(stats.RowsSynthesized) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("files_synthesized", stats.FilesSynthesized),
		logger.Int("rows_synthesized", stats.RowsSynthesized),
		logger.Int("files_served", stats.FilesServed),
		logger.Int("files_refused", stats.FilesRefused),
		logger.Int("lab_rows", stats.LabRows),
		logger.Int("demo_rows", stats.DemoRows),
		logger.Int("merged_rows", stats.MergedRows),
		logger.Int("checks_passed", stats.ChecksPassed),
		logger.Int("checks_failed", stats.ChecksFailed),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("check_success_rate", checkSuccessRate),
		logger.Float64("rows_per_second", rowsPerSecond))
}
