// Package analysis correlates the HTTP exchanges of a captured trace into
// video usage: it matches media downloads to the manifests that govern them,
// resolves segment numbers, bitrates and timing, and reconciles missing
// durations once the whole trace has been read.
package analysis

import (
	"context"
	"errors"
	"log/slog"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/artifacts"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/classify"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/config"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/logging"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/manifest"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/media"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/process"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/rules"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/trace"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/usage"
)

// Prober inspects saved segment files.
type Prober interface {
	Probe(ctx context.Context, path string) (process.Metadata, error)
	Thumbnail(ctx context.Context, src, dst string) ([]byte, error)
}

// Observer receives analysis progress, typically a metrics collector.
// Calls are made from the goroutine running Analyze.
type Observer interface {
	ExchangeClassified(kind classify.Kind)
	ManifestRegistered(t media.VideoType)
	SegmentExtracted(ev *manifest.Event)
	ExchangeFailed(kind classify.Kind, reason string)
	DurationsReconciled(n int)
}

type nopObserver struct{}

func (nopObserver) ExchangeClassified(classify.Kind)     {}
func (nopObserver) ManifestRegistered(media.VideoType)   {}
func (nopObserver) SegmentExtracted(*manifest.Event)     {}
func (nopObserver) ExchangeFailed(classify.Kind, string) {}
func (nopObserver) DurationsReconciled(int)              {}

// Options configures an Analyzer.
type Options struct {
	Prefs config.Prefs
	Rules *rules.Set

	// Prober extracts thumbnails and metadata; nil disables both.
	Prober Prober

	Observer Observer
	Logger   *slog.Logger
}

// Analyzer turns traces into usage reports. It holds only read-only
// configuration, so one Analyzer may serve concurrent Analyze calls.
type Analyzer struct {
	prefs    config.Prefs
	rules    *rules.Set
	prober   Prober
	observer Observer
	logger   *slog.Logger
}

// New creates an Analyzer.
func New(opts Options) *Analyzer {
	a := &Analyzer{
		prefs:    opts.Prefs,
		rules:    opts.Rules,
		prober:   opts.Prober,
		observer: opts.Observer,
		logger:   opts.Logger,
	}
	if a.observer == nil {
		a.observer = nopObserver{}
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Analyze processes every eligible exchange of tr in timestamp order and
// returns the usage report. Individual exchange failures are recorded in
// the report, never returned. The error is non-nil only when ctx ends
// before the trace was fully processed; the partial report is returned
// with it.
func (a *Analyzer) Analyze(ctx context.Context, tr *trace.Trace) (*usage.Report, error) {
	if tr == nil {
		return nil, errors.New("analysis: nil trace")
	}

	r := a.newRun(ctx, tr)
	r.prepare()
	r.preseed()

	timeline := trace.BuildTimeline(tr.Sessions)
	r.logger.Info("analysis_started",
		"exchanges", timeline.Len(),
		"manifests_preseeded", r.report.Registry().Len(),
	)

	var err error
	for _, ex := range timeline.Exchanges() {
		if err = ctx.Err(); err != nil {
			break
		}
		r.handle(ex)
	}

	reconciled := 0
	for _, m := range r.report.Manifests() {
		reconciled += manifest.Reconcile(m)
	}
	a.observer.DurationsReconciled(reconciled)

	r.cleanup()

	r.logger.Info("analysis_complete",
		"manifests", r.report.Registry().Len(),
		"events", r.report.EventCount(),
		"requests", r.report.Requests().Len(),
		"failed", len(r.report.Failed()),
		"durations_reconciled", reconciled,
	)
	return r.report, err
}

// handle routes one exchange by its classification.
func (r *run) handle(ex *trace.Exchange) {
	if ex.Response == nil {
		return
	}
	res := classify.Classify(ex.ObjectName())
	r.observer.ExchangeClassified(res.Kind)

	switch res.Kind {
	case classify.KindDASHManifest:
		r.adopt(r.extractDASHManifest(ex))
	case classify.KindHLSManifest:
		r.adopt(r.extractHLSManifest(ex))
	case classify.KindDASHMedia, classify.KindHLSMedia, classify.KindUnlabeledMedia:
		r.extractMedia(ex, res)
	case classify.KindImage:
		if r.extractImages {
			r.extractImage(ex, res)
		}
	case classify.KindUnhandled:
		r.logger.Debug("unhandled_extension", "extension", res.Extension, "uri", ex.URI())
	}
}

// run is the state of one analysis. It is confined to the goroutine that
// called Analyze.
type run struct {
	*Analyzer

	ctx    context.Context
	trace  *trace.Trace
	store  *artifacts.Store
	report *usage.Report
	logger *slog.Logger

	segmentsDir  string
	imageDir     string
	downloadsDir string

	// current is the manifest most recently adopted; only adopt writes it.
	current manifest.Manifest

	extractImages bool
	time0         float64
}

func (a *Analyzer) newRun(ctx context.Context, tr *trace.Trace) *run {
	store := artifacts.NewStore(tr.Dir)
	return &run{
		Analyzer:     a,
		ctx:          ctx,
		trace:        tr,
		store:        store,
		report:       usage.NewReport(tr.Dir),
		logger:       logging.ForTrace(a.logger, tr.Dir),
		segmentsDir:  store.Path(artifacts.SegmentsDir),
		imageDir:     store.Path(artifacts.ImageDir),
		downloadsDir: store.Path(artifacts.DownloadsDir),
	}
}

// prepare resets the segment folder and decides whether images are
// extracted: only on the first run, when the image folder is absent.
func (r *run) prepare() {
	if err := r.store.Reset(r.segmentsDir); err != nil {
		r.logger.Warn("segments_dir_reset_failed", "dir", r.segmentsDir, "error", err)
	}

	r.extractImages = !r.store.Exists(r.imageDir)
	if r.extractImages {
		if err := r.store.EnsureDir(r.imageDir); err != nil {
			r.logger.Warn("image_dir_create_failed", "dir", r.imageDir, "error", err)
		}
	}

	if err := r.store.EnsureDir(r.downloadsDir); err != nil {
		r.logger.Warn("downloads_dir_create_failed", "dir", r.downloadsDir, "error", err)
	}
}

func (r *run) cleanup() {
	if r.prefs.DevMode {
		return
	}
	if err := r.store.RemoveAll(r.segmentsDir); err != nil {
		r.logger.Warn("segments_dir_remove_failed", "dir", r.segmentsDir, "error", err)
	}
}

// content fetches the response payload of ex.
func (r *run) content(ex *trace.Exchange) ([]byte, error) {
	if r.trace.Source == nil {
		return nil, trace.ErrNoContent
	}
	data, err := r.trace.Source.Content(ex)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, trace.ErrNoContent
	}
	return data, nil
}

// fail records ex as failed.
func (r *run) fail(ex *trace.Exchange, kind classify.Kind, reason string, err error) {
	r.report.AddFailed(ex)
	r.observer.ExchangeFailed(kind, reason)
	r.logger.Debug("exchange_failed",
		"kind", kind.String(),
		"reason", reason,
		"uri", ex.URI(),
		"error", err,
	)
}
