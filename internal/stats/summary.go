package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	ruleHeavy = "═══════════════════════════════════════════════════════════════════════════════\n"
	ruleLight = "───────────────────────────────────────────────────────────────────────────────\n"
)

// SummaryConfig holds configuration for summary formatting.
type SummaryConfig struct {
	// Duration is the wall-clock time spent on the trace or batch
	Duration time.Duration

	// MetricsAddr is the Prometheus metrics endpoint address
	MetricsAddr string

	// ReportPath is where the JSON report was written, if anywhere
	ReportPath string
}

// FormatReportSummary formats the summary of one analyzed trace.
//
// The summary includes:
// - Trace information
// - One row per manifest with segment coverage and volume
// - Bitrate and duration percentiles
// - Failed exchange count
func FormatReportSummary(stats *ReportStats, cfg SummaryConfig) string {
	if stats == nil {
		return formatBasicSummary(cfg)
	}

	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(ruleHeavy)
	b.WriteString("                        Video Usage Summary\n")
	b.WriteString(ruleHeavy)
	b.WriteString("\n")

	fmt.Fprintf(&b, "Trace:                  %s\n", stats.TraceDir)
	if stats.RunID != "" {
		fmt.Fprintf(&b, "Run ID:                 %s\n", stats.RunID)
	}
	fmt.Fprintf(&b, "Analysis Time:          %s\n", FormatDuration(cfg.Duration))
	fmt.Fprintf(&b, "Manifests:              %d\n", len(stats.Manifests))
	fmt.Fprintf(&b, "Segment Events:         %s\n", humanize.Comma(int64(stats.TotalEvents)))
	fmt.Fprintf(&b, "Media Volume:           %s\n\n", FormatBytes(stats.TotalBytes))

	if len(stats.Manifests) > 0 {
		b.WriteString(ruleLight)
		b.WriteString("                                 Manifests\n")
		b.WriteString(ruleLight)
		b.WriteString("\n")

		fmt.Fprintf(&b, "  %-7s %-24s %8s %10s %8s %10s\n", "Type", "Video", "Events", "Segments", "Missing", "Bytes")
		b.WriteString("  " + strings.Repeat("─", 72) + "\n")
		marked := false
		for _, m := range stats.Manifests {
			fmt.Fprintf(&b, "  %-7s %-24s %8d %10s %8d %10s\n",
				typeLabel(m),
				truncate(m.VideoName, 24),
				m.Events,
				FormatSegmentRange(m.FirstSegment, m.LastSegment),
				m.MissingSegments,
				FormatBytes(m.Bytes),
			)
			marked = marked || m.Live || m.Smooth
		}
		if marked {
			b.WriteString("  * live playlist   ~ smooth streaming\n")
		}
		b.WriteString("\n")
	}

	if stats.BitrateP50 > 0 || stats.DurationP50 > 0 {
		b.WriteString(ruleLight)
		b.WriteString("                               Distribution\n")
		b.WriteString(ruleLight)
		b.WriteString("\n")

		fmt.Fprintf(&b, "  Bitrate P50:          %s\n", FormatBitrate(stats.BitrateP50))
		fmt.Fprintf(&b, "  Bitrate P95:          %s\n", FormatBitrate(stats.BitrateP95))
		fmt.Fprintf(&b, "  Duration P50:         %.3f s\n", stats.DurationP50)
		fmt.Fprintf(&b, "  Duration P95:         %.3f s\n", stats.DurationP95)
		fmt.Fprintf(&b, "  Thumbnails:           %d\n\n", stats.Thumbnails)
	}

	b.WriteString(ruleLight)
	b.WriteString("                                 Requests\n")
	b.WriteString(ruleLight)
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Processed:            %d\n", stats.Requests)
	fmt.Fprintf(&b, "  Failed:               %d\n\n", stats.Failed)

	writeFooter(&b, cfg)
	return b.String()
}

// BatchTotals is the input for the batch summary, typically taken from the
// metrics collector.
type BatchTotals struct {
	Traces          int64
	TraceErrors     int64
	Segments        int64
	SegmentBytes    int64
	FailedExchanges int64
	TraceP50        time.Duration
	TraceMax        time.Duration
}

// FormatBatchSummary formats the closing summary of a multi-trace run.
func FormatBatchSummary(t BatchTotals, cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(ruleHeavy)
	b.WriteString("                        Video Usage Batch Summary\n")
	b.WriteString(ruleHeavy)
	b.WriteString("\n")

	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(cfg.Duration))
	fmt.Fprintf(&b, "Traces:                 %d (%d failed)\n", t.Traces, t.TraceErrors)
	fmt.Fprintf(&b, "Segment Events:         %s\n", humanize.Comma(t.Segments))
	fmt.Fprintf(&b, "Media Volume:           %s\n", FormatBytes(t.SegmentBytes))
	fmt.Fprintf(&b, "Failed Exchanges:       %s\n", humanize.Comma(t.FailedExchanges))
	if t.Traces > 0 {
		fmt.Fprintf(&b, "Trace Time P50:         %s\n", FormatMs(t.TraceP50))
		fmt.Fprintf(&b, "Trace Time Max:         %s\n", FormatMs(t.TraceMax))
	}
	b.WriteString("\n")

	writeFooter(&b, cfg)
	return b.String()
}

// formatBasicSummary formats a basic summary when no report is available.
func formatBasicSummary(cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(ruleHeavy)
	b.WriteString("                        Video Usage Summary\n")
	b.WriteString(ruleHeavy)
	b.WriteString("\n")

	fmt.Fprintf(&b, "Analysis Time:          %s\n\n", FormatDuration(cfg.Duration))
	b.WriteString("(No report was produced)\n\n")

	writeFooter(&b, cfg)
	return b.String()
}

func writeFooter(b *strings.Builder, cfg SummaryConfig) {
	if cfg.ReportPath != "" {
		fmt.Fprintf(b, "Report written to: %s\n", cfg.ReportPath)
	}
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}
	b.WriteString(ruleHeavy)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatBytes formats a byte count with SI suffixes.
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// FormatBitrate formats bits per second.
func FormatBitrate(bps float64) string {
	if bps <= 0 {
		return "-"
	}
	value, prefix := humanize.ComputeSI(bps)
	return fmt.Sprintf("%.1f %sbps", value, prefix)
}

// FormatMs formats a duration as milliseconds.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		// Sub-millisecond, show microseconds
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}

// FormatSegmentRange formats the first and last segment numbers.
func FormatSegmentRange(first, last int) string {
	if first < 0 {
		return "-"
	}
	if first == last {
		return fmt.Sprintf("%d", first)
	}
	return fmt.Sprintf("%d-%d", first, last)
}

// typeLabel marks live playlists and Smooth Streaming manifests.
func typeLabel(m ManifestStats) string {
	switch {
	case m.Live:
		return m.Type + "*"
	case m.Smooth:
		return m.Type + "~"
	}
	return m.Type
}
