// Package metrics provides Prometheus metrics for the video usage analyzer.
//
// A Collector observes every analysis run of the process. Counters are
// labelled by classification kind and video type only, so cardinality stays
// fixed however many traces are analyzed.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/classify"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/manifest"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/media"
)

// Version is reported by the info gauge.
const Version = "1.0"

// Collector records analysis progress. It implements analysis.Observer and
// is safe for concurrent use by several analyses.
type Collector struct {
	// --- Panel 1: Run Overview ---
	info             *prometheus.GaugeVec
	tracesInProgress prometheus.Gauge
	tracesTotal      *prometheus.CounterVec
	traceSeconds     prometheus.Histogram

	// --- Panel 2: Exchanges ---
	exchangesTotal *prometheus.CounterVec
	failedTotal    *prometheus.CounterVec

	// --- Panel 3: Manifests & Segments ---
	manifestsTotal    *prometheus.CounterVec
	segmentsTotal     *prometheus.CounterVec
	segmentBytesTotal *prometheus.CounterVec
	segmentSizeBytes  prometheus.Histogram
	thumbnailsTotal   prometheus.Counter
	reconciledTotal   prometheus.Counter

	startTime time.Time

	// For summary generation
	mu           sync.Mutex
	traces       int64
	traceErrors  int64
	segments     int64
	segmentBytes int64
	failed       int64
	durations    []time.Duration
}

// NewCollector creates a collector registered with the default registry.
func NewCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector registered with registry.
func NewCollectorWithRegistry(registry prometheus.Registerer) *Collector {
	c := &Collector{
		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "video_usage_info",
				Help: "Information about the analyzer (value always 1)",
			},
			[]string{"version"},
		),
		tracesInProgress: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "video_usage_traces_in_progress",
				Help: "Traces currently being analyzed",
			},
		),
		tracesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "video_usage_traces_total",
				Help: "Analyzed traces by result",
			},
			[]string{"result"}, // "ok", "error"
		),
		traceSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "video_usage_trace_duration_seconds",
				Help:    "Wall-clock time spent analyzing one trace",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		exchangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "video_usage_exchanges_total",
				Help: "Eligible exchanges by classification",
			},
			[]string{"kind"},
		),
		failedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "video_usage_exchanges_failed_total",
				Help: "Exchanges recorded as failed, by classification and reason",
			},
			[]string{"kind", "reason"},
		),
		manifestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "video_usage_manifests_registered_total",
				Help: "Manifests registered by video type",
			},
			[]string{"type"},
		),
		segmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "video_usage_segments_total",
				Help: "Segment events extracted by video type",
			},
			[]string{"type"},
		),
		segmentBytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "video_usage_segment_bytes_total",
				Help: "Media payload bytes of extracted segments by video type",
			},
			[]string{"type"},
		),
		segmentSizeBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "video_usage_segment_size_bytes",
				Help:    "Media payload size distribution of extracted segments",
				Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10), // 16KiB .. 8MiB
			},
		),
		thumbnailsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "video_usage_thumbnails_total",
				Help: "Segment events carrying a thumbnail",
			},
		),
		reconciledTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "video_usage_durations_reconciled_total",
				Help: "Segment durations filled in after the trace was read",
			},
		),
		startTime: time.Now(),
	}

	registry.MustRegister(
		// Panel 1: Run Overview
		c.info,
		c.tracesInProgress,
		c.tracesTotal,
		c.traceSeconds,

		// Panel 2: Exchanges
		c.exchangesTotal,
		c.failedTotal,

		// Panel 3: Manifests & Segments
		c.manifestsTotal,
		c.segmentsTotal,
		c.segmentBytesTotal,
		c.segmentSizeBytes,
		c.thumbnailsTotal,
		c.reconciledTotal,
	)

	c.info.WithLabelValues(Version).Set(1)
	return c
}

// =============================================================================
// Analysis Observer
// =============================================================================

// ExchangeClassified counts one eligible exchange.
func (c *Collector) ExchangeClassified(kind classify.Kind) {
	c.exchangesTotal.WithLabelValues(kind.String()).Inc()
}

// ManifestRegistered counts a manifest added to a registry.
func (c *Collector) ManifestRegistered(t media.VideoType) {
	c.manifestsTotal.WithLabelValues(t.String()).Inc()
}

// SegmentExtracted counts a segment event.
func (c *Collector) SegmentExtracted(ev *manifest.Event) {
	t := ev.Type.String()
	c.segmentsTotal.WithLabelValues(t).Inc()
	c.segmentBytesTotal.WithLabelValues(t).Add(float64(ev.Size))
	c.segmentSizeBytes.Observe(float64(ev.Size))
	if len(ev.Thumbnail) > 0 {
		c.thumbnailsTotal.Inc()
	}

	c.mu.Lock()
	c.segments++
	c.segmentBytes += ev.Size
	c.mu.Unlock()
}

// ExchangeFailed counts an exchange recorded as failed.
func (c *Collector) ExchangeFailed(kind classify.Kind, reason string) {
	c.failedTotal.WithLabelValues(kind.String(), reason).Inc()

	c.mu.Lock()
	c.failed++
	c.mu.Unlock()
}

// DurationsReconciled counts durations filled in by reconciliation.
func (c *Collector) DurationsReconciled(n int) {
	c.reconciledTotal.Add(float64(n))
}

// =============================================================================
// Trace Lifecycle
// =============================================================================

// TraceStarted marks the start of one trace analysis.
func (c *Collector) TraceStarted() {
	c.tracesInProgress.Inc()
}

// TraceFinished records the outcome of one trace analysis.
func (c *Collector) TraceFinished(elapsed time.Duration, err error) {
	c.tracesInProgress.Dec()
	c.traceSeconds.Observe(elapsed.Seconds())

	result := "ok"
	if err != nil {
		result = "error"
	}
	c.tracesTotal.WithLabelValues(result).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.traces++
	if err != nil {
		c.traceErrors++
	}
	c.durations = append(c.durations, elapsed)
}

// =============================================================================
// Summary Generation
// =============================================================================

// Summary holds the data for generating an exit summary.
type Summary struct {
	Duration        time.Duration
	Traces          int64
	TraceErrors     int64
	Segments        int64
	SegmentBytes    int64
	FailedExchanges int64
	TraceP50        time.Duration
	TraceMax        time.Duration
}

// GenerateSummary creates a summary of the run.
func (c *Collector) GenerateSummary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Summary{
		Duration:        time.Since(c.startTime),
		Traces:          c.traces,
		TraceErrors:     c.traceErrors,
		Segments:        c.segments,
		SegmentBytes:    c.segmentBytes,
		FailedExchanges: c.failed,
	}

	if len(c.durations) > 0 {
		sorted := make([]time.Duration, len(c.durations))
		copy(sorted, c.durations)
		sortDurations(sorted)

		s.TraceP50 = percentile(sorted, 0.50)
		s.TraceMax = sorted[len(sorted)-1]
	}
	return s
}

// =============================================================================
// Helper Functions
// =============================================================================

// sortDurations sorts a slice of durations in place.
func sortDurations(d []time.Duration) {
	for i := 1; i < len(d); i++ {
		for j := i; j > 0 && d[j] < d[j-1]; j-- {
			d[j], d[j-1] = d[j-1], d[j]
		}
	}
}

// percentile returns the value at the given percentile (0.0-1.0).
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
