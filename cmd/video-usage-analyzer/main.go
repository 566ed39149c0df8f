// Package main provides the video-usage-analyzer CLI entry point.
//
// video-usage-analyzer correlates the video traffic captured in trace
// directories into per-manifest segment usage reports.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/analysis"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/batch"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/config"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/logging"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/metrics"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/preflight"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/process"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/rules"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/tui"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/video-usage-analyzer
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("video-usage-analyzer %s\n", version)
			return 0
		}
	}

	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	if cfg.Check {
		config.ApplyCheckMode(cfg)
	}

	// Logs would corrupt the viewer's screen
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.Discard()
	} else {
		logger = logging.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.Verbose)
	}
	logging.SetDefault(logger)

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.SkipPreflight {
		result := preflight.RunAll(ctx, preflight.Options{
			TraceDirs:  cfg.TraceDirs,
			FFmpegPath: cfg.FFmpegPath,
			Thumbnails: cfg.Thumbnails,
			Parallel:   cfg.Parallel,
		})
		preflight.PrintResults(os.Stdout, result)
		if !result.Passed {
			fmt.Fprintln(os.Stderr, "preflight checks failed (use -skip-preflight to override)")
			return 1
		}
	}
	if cfg.Check {
		return 0
	}

	var ruleSet *rules.Set
	if cfg.RulesPath != "" {
		ruleSet, err = rules.Load(cfg.RulesPath)
		if err != nil {
			logger.Error("rules_load_failed", "path", cfg.RulesPath, "error", err)
			return 1
		}
		logger.Info("rules_loaded", "path", cfg.RulesPath, "rules", ruleSet.Len())
	}

	logger.Info("starting",
		"version", version,
		"traces", len(cfg.TraceDirs),
		"parallel", cfg.Parallel,
		"thumbnails", cfg.Thumbnails,
		"metrics_addr", cfg.MetricsAddr,
	)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollectorWithRegistry(registry)

	var server *metrics.Server
	if cfg.MetricsAddr != "" {
		server = metrics.NewServer(cfg.MetricsAddr, registry, logger)
		if err := server.Start(); err != nil {
			logger.Error("metrics_server_failed", "error", err)
			return 1
		}
	}

	runner := batch.New(batch.Options{
		Dirs:     cfg.TraceDirs,
		Parallel: cfg.Parallel,
		Analysis: analysis.Options{
			Prefs:  cfg.Prefs(),
			Rules:  ruleSet,
			Prober: newProber(cfg, logger),
		},
		Collector:   collector,
		WriteReport: cfg.WriteReport,
		Quiet:       cfg.TUIEnabled,
		MetricsAddr: cfg.MetricsAddr,
		Logger:      logger,
	})

	var results []batch.Result
	if cfg.TUIEnabled {
		results, err = runWithViewer(ctx, runner, cfg.MetricsAddr)
	} else {
		results, err = runner.Run(ctx)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics_server_shutdown_error", "error", err)
		}
	}

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile, registry); err != nil {
			logger.Warn("metrics_textfile_failed", "path", cfg.MetricsTextfile, "error", err)
		}
	}

	if err != nil {
		logger.Error("batch_interrupted", "error", err)
		return 1
	}
	for _, res := range results {
		if res.Err != nil {
			return 1
		}
	}
	return 0
}

// newProber returns the ffmpeg prober, or nil when thumbnails are disabled.
func newProber(cfg *config.Config, logger *slog.Logger) analysis.Prober {
	if !cfg.Thumbnails {
		return nil
	}
	output := logging.NewOutputHandler("ffmpeg", logger, cfg.Verbose)
	return process.NewFFmpegProber(&process.FFmpegConfig{
		BinaryPath: cfg.FFmpegPath,
		LogLevel:   cfg.FFmpegLogLevel,
		Timeout:    cfg.ProbeTimeout,
	}, nil, output, logger)
}

// runWithViewer runs the batch while the report viewer owns the terminal.
// Quitting the viewer cancels a batch that is still running.
func runWithViewer(ctx context.Context, runner *batch.Runner, metricsAddr string) ([]batch.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		results []batch.Result
		err     error
	}
	done := make(chan outcome, 1)

	program := tea.NewProgram(tui.New(tui.Config{
		MetricsAddr: metricsAddr,
		Source:      runner,
	}), tea.WithAltScreen(), tea.WithContext(ctx))

	go func() {
		results, err := runner.Run(ctx)
		tui.SendProgress(program, runner.Progress())
		done <- outcome{results, err}
	}()

	_, viewErr := program.Run()
	cancel()
	out := <-done

	if viewErr != nil && !errors.Is(viewErr, tea.ErrProgramKilled) {
		return out.results, fmt.Errorf("report viewer: %w", viewErr)
	}
	return out.results, out.err
}
