package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/simonaseno/nhanes/internal/adapters/http/status"
	app "github.com/simonaseno/nhanes/internal/app"
	"github.com/simonaseno/nhanes/internal/config"
	"github.com/simonaseno/nhanes/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// appVersion is stamped at link time via -ldflags "-X main.appVersion=...".
var appVersion = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath    = flag.String("config", "", "Path to a YAML config file (default: NHANES_CONFIG env var)")
		outputDir     = flag.String("out", "", "Override the configured output directory")
		joinKey       = flag.String("join-key", "", "Override the configured join key column")
		fromSnapshots = flag.Bool("from-snapshots", false, "Skip acquisition and join the persisted snapshots")
		showVersion   = flag.Bool("version", false, "Print the version and exit")
	)
	flag.Parse()

	if *showVersion {
		os.Stdout.WriteString("nhanes " + appVersion + "\n")
		return 0
	}

	// Disable default Go metrics collection to avoid duplicate metrics
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize logging
	if err := logger.Init(); err != nil {
		// Logging straight to stderr since the logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return 1
	}

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> embedded registry -> optional file -> env)
	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Flag overrides for one-off runs
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *joinKey != "" {
		cfg.JoinKey = *joinKey
	}

	// Create the pipeline service with configuration options
	svc := app.New(
		app.WithLogger(loggerInstance),
		app.WithBaseURL(cfg.BaseURL),
		app.WithOutputDir(cfg.OutputDir),
		app.WithJoinKey(cfg.JoinKey),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithFetchTimeout(cfg.FetchTimeout()),
		app.WithSources(cfg.LabEntries(), cfg.DemoEntries()),
	)

	// Optional status listener exposing health, metrics, and the state
	// of the current run.
	var srv *http.Server
	if cfg.StatusAddr != "" {
		mux := http.NewServeMux()
		statusServer := status.NewServer(svc)
		statusServer.Register(ctx, mux)

		srv = &http.Server{
			Addr:              cfg.StatusAddr,
			Handler:           mux,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
		}
		go func() {
			loggerInstance.Info(ctx, "starting status server", logger.String("addr", cfg.StatusAddr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				os.Stderr.WriteString("status server failed: " + err.Error() + "\n")
			}
		}()
	}

	report, runErr := execute(ctx, svc, *fromSnapshots)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			loggerInstance.Error(ctx, "status server shutdown failed", logger.Error(err))
		}
	}

	if runErr != nil {
		os.Stderr.WriteString("pipeline failed: " + runErr.Error() + "\n")
		return 1
	}

	// The run summary goes to stdout; structured logs go to stderr.
	report.Render(os.Stdout)
	return 0
}

// execute performs either the full acquisition run or a join of the
// snapshots persisted by an earlier one.
func execute(ctx context.Context, svc *app.Service, fromSnapshots bool) (*app.RunReport, error) {
	if fromSnapshots {
		return svc.JoinFromSnapshots(ctx)
	}
	return svc.Run(ctx)
}
