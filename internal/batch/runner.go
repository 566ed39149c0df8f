// Package batch analyzes trace directories in parallel and reports on them.
package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/analysis"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/artifacts"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/logging"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/metrics"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/stats"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/trace"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/tui"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/usage"
)

// Options configures a Runner.
type Options struct {
	Dirs     []string
	Parallel int

	// Analysis is copied for every trace; its Observer is replaced by the
	// collector and its Logger gains a run_id attribute.
	Analysis analysis.Options

	// Collector records metrics; nil disables them.
	Collector *metrics.Collector

	// WriteReport stores video_usage.json in each trace directory.
	WriteReport bool

	// Quiet suppresses the per-trace summaries, e.g. while the viewer owns
	// the terminal.
	Quiet bool

	// MetricsAddr is shown in the summaries.
	MetricsAddr string

	Out    io.Writer
	Logger *slog.Logger

	// Load reads a trace directory; nil uses trace.LoadDir.
	Load func(dir string) (*trace.Trace, error)
}

// Result is the outcome of one trace directory.
type Result struct {
	Dir        string
	RunID      string
	Report     *usage.Report
	Stats      *stats.ReportStats
	ReportPath string
	Elapsed    time.Duration
	Err        error
}

// Runner coordinates the analysis of a batch of traces.
type Runner struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	progress tui.Progress
	results  []Result
}

// New creates a Runner.
func New(opts Options) *Runner {
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Load == nil {
		opts.Load = trace.LoadDir
	}
	return &Runner{
		opts:     opts,
		logger:   opts.Logger,
		progress: tui.Progress{Total: len(opts.Dirs)},
	}
}

// Run analyzes every directory, at most Parallel at a time. A failed trace
// never stops the others; its error is kept in its Result. Results are
// returned in the order of Options.Dirs. The error is non-nil only when
// ctx ended before the batch completed.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	start := time.Now()
	results := make([]Result, len(r.opts.Dirs))

	r.logger.Info("batch_starting",
		"traces", len(r.opts.Dirs),
		"parallel", r.opts.Parallel,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Parallel)
	for i, dir := range r.opts.Dirs {
		g.Go(func() error {
			results[i] = r.runOne(gctx, dir)
			r.finished(results[i])
			return nil
		})
	}
	_ = g.Wait()

	r.mu.Lock()
	failed := r.progress.Failed
	r.mu.Unlock()

	r.logger.Info("batch_complete",
		"traces", len(results),
		"failed", failed,
		"duration", time.Since(start).String(),
	)

	if !r.opts.Quiet && len(results) > 1 && r.opts.Collector != nil {
		s := r.opts.Collector.GenerateSummary()
		fmt.Fprint(r.opts.Out, stats.FormatBatchSummary(stats.BatchTotals{
			Traces:          s.Traces,
			TraceErrors:     s.TraceErrors,
			Segments:        s.Segments,
			SegmentBytes:    s.SegmentBytes,
			FailedExchanges: s.FailedExchanges,
			TraceP50:        s.TraceP50,
			TraceMax:        s.TraceMax,
		}, stats.SummaryConfig{
			Duration:    time.Since(start),
			MetricsAddr: r.opts.MetricsAddr,
		}))
	}

	return results, ctx.Err()
}

// runOne analyzes a single trace directory.
func (r *Runner) runOne(ctx context.Context, dir string) Result {
	res := Result{Dir: dir, RunID: uuid.NewString()}
	runLogger := logging.ForRun(r.logger, res.RunID)
	logger := logging.ForTrace(runLogger, dir)

	if r.opts.Collector != nil {
		r.opts.Collector.TraceStarted()
	}
	start := time.Now()

	tr, err := r.opts.Load(dir)
	if err != nil {
		res.Err = fmt.Errorf("load %s: %w", dir, err)
		r.traceFinished(logger, &res, start)
		return res
	}

	opts := r.opts.Analysis
	// The analyzer adds the trace attribute itself.
	opts.Logger = runLogger
	if r.opts.Collector != nil {
		opts.Observer = r.opts.Collector
	}

	report, err := analysis.New(opts).Analyze(ctx, tr)
	if report != nil {
		report.RunID = res.RunID
		res.Report = report
		res.Stats = stats.Aggregate(report)
	}
	if err != nil {
		res.Err = fmt.Errorf("analyze %s: %w", dir, err)
	}

	if r.opts.WriteReport && report != nil {
		if path, err := writeReport(dir, report); err != nil {
			logger.Warn("report_write_failed", "error", err)
		} else {
			res.ReportPath = path
		}
	}

	r.traceFinished(logger, &res, start)

	if !r.opts.Quiet && res.Stats != nil {
		fmt.Fprint(r.opts.Out, stats.FormatReportSummary(res.Stats, stats.SummaryConfig{
			Duration:    time.Since(start),
			MetricsAddr: r.opts.MetricsAddr,
			ReportPath:  res.ReportPath,
		}))
	}
	return res
}

func (r *Runner) traceFinished(logger *slog.Logger, res *Result, start time.Time) {
	elapsed := time.Since(start)
	res.Elapsed = elapsed
	if r.opts.Collector != nil {
		r.opts.Collector.TraceFinished(elapsed, res.Err)
	}
	if res.Err != nil {
		logger.Error("trace_failed", "error", res.Err)
		return
	}
	logger.Info("trace_complete", "duration", elapsed.String())
}

// writeReport stores the report snapshot next to the trace.
func writeReport(dir string, report *usage.Report) (string, error) {
	data, err := report.MarshalIndent()
	if err != nil {
		return "", err
	}
	store := artifacts.NewStore(dir)
	path := store.Path(artifacts.ReportFile)
	if err := store.Save(path, data); err != nil {
		return "", err
	}
	return path, nil
}

func (r *Runner) finished(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.progress.Done++
	if res.Err != nil {
		r.progress.Failed++
	}
	if res.Stats != nil {
		r.progress.Reports = append(r.progress.Reports, res.Stats)
	}
	r.results = append(r.results, res)
}

// Progress returns a snapshot of the batch for the report viewer.
func (r *Runner) Progress() tui.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.progress
	p.Reports = append([]*stats.ReportStats(nil), r.progress.Reports...)
	return p
}

// Results returns the results finished so far, in completion order.
func (r *Runner) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result(nil), r.results...)
}
