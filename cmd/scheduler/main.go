// Package main is the entry point for the colocation scheduler.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/TellToldTold/cloud-comp-arch-project/internal/affinity"
	"github.com/TellToldTold/cloud-comp-arch-project/internal/config"
	"github.com/TellToldTold/cloud-comp-arch-project/internal/events"
	"github.com/TellToldTold/cloud-comp-arch-project/internal/monitor"
	"github.com/TellToldTold/cloud-comp-arch-project/internal/queue"
	"github.com/TellToldTold/cloud-comp-arch-project/internal/runner"
	"github.com/TellToldTold/cloud-comp-arch-project/internal/scheduler"
	"github.com/TellToldTold/cloud-comp-arch-project/internal/server"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		println("Colocation Scheduler")
		println("Version:", version)
		println("Commit:", commit)
		println("Build Date:", buildDate)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		println("Failed to load config:", err.Error())
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logging)
	defer logger.Sync()

	runID := uuid.New().String()
	logger.Info("Starting colocation scheduler",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("run_id", runID),
	)

	if err := run(cfg, runID, logger); err != nil {
		logger.Error("Run failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("Goodbye!")
}

// run wires the components together and drives the control loop to completion.
func run(cfg *config.Config, runID string, logger *zap.Logger) error {
	jobNames, err := cfg.Controller.JobNames()
	if err != nil {
		return err
	}

	// The event log is the run's audit trail; refusing to start without it
	// beats producing an unverifiable run.
	sink, err := events.NewFileSink(cfg.Events.Path)
	if err != nil {
		return err
	}
	ev, err := events.NewLogger(sink, runID)
	if err != nil {
		return err
	}

	sampler, err := monitor.NewCPUMonitor(cfg.Controller.TotalCores, cfg.Monitor.SampleInterval, logger)
	if err != nil {
		return err
	}

	aff := affinity.NewProcessController(cfg.Service.ProcessName, logger)

	dockerRunner, err := runner.NewDockerRunner(runID, cfg.Runner.StopGrace, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dockerRunner.PruneStale(ctx); err != nil {
		logger.Warn("Pruning stale containers failed", zap.Error(err))
	}
	if cfg.Runner.PullImages {
		if err := dockerRunner.PullImages(ctx, jobNames); err != nil {
			return err
		}
	}

	ctrl := scheduler.New(
		scheduler.Config{
			TickInterval:      cfg.Controller.TickInterval,
			TotalCores:        cfg.Controller.TotalCores,
			ServiceCore:       cfg.Controller.ServiceCore,
			SharedCore:        cfg.Controller.SharedCore,
			HighWatermark:     cfg.Controller.HighWatermark,
			LowWatermark:      cfg.Controller.LowWatermark,
			EvictionThreshold: cfg.Controller.EvictionThreshold,
			Jobs:              jobNames,
			JobThreads:        cfg.Controller.JobThreads,
			MaxConcurrentJobs: cfg.Controller.MaxConcurrentJobs,
			ServiceThreads:    cfg.Service.Threads,
		},
		sampler,
		aff,
		dockerRunner,
		queue.New(),
		queue.NewTimer(),
		ev,
		logger,
	)

	if cfg.Server.Enabled {
		srv := server.New(cfg.Server, ctrl, ev, logger)
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("Status server failed", zap.Error(err))
			}
		}()
	}

	return ctrl.Run(ctx)
}

// setupLogger configures the zap logger based on configuration.
func setupLogger(cfg config.LoggingConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapConfig zap.Config
	if cfg.Format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	zapConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapConfig.Build()
	if err != nil {
		panic("Failed to create logger: " + err.Error())
	}

	return logger
}
