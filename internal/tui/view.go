package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/stats"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderSummaryView renders the batch overview.
func (m Model) renderSummaryView() string {
	sections := []string{
		m.renderHeader(),
		m.renderProgress(),
		m.renderReportTable(),
	}
	if r := m.Selected(); r != nil {
		sections = append(sections, m.renderTotals(r))
	}
	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderDetailedView renders the manifests of the selected report.
func (m Model) renderDetailedView() string {
	r := m.Selected()
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderTotals(r),
		m.renderManifestTable(r),
		m.renderFooter(),
	)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	header := fmt.Sprintf(
		" video-usage-analyzer │ Traces: %d/%d │ Elapsed: %s ",
		m.progress.Done,
		m.progress.Total,
		stats.FormatDuration(m.Elapsed()),
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Progress Section
// =============================================================================

func (m Model) renderProgress() string {
	barWidth := max(m.width-30, 20)
	progressBar := RenderProgressBar(m.Fraction(), barWidth)

	var status string
	switch {
	case m.Finished() && m.progress.Failed > 0:
		status = statusError.Render(fmt.Sprintf("✗ Done, %d of %d traces failed", m.progress.Failed, m.progress.Total))
	case m.Finished():
		status = statusOK.Render("✓ All traces analyzed")
	default:
		status = statusInfo.Render(fmt.Sprintf("Analyzing... %d/%d", m.progress.Done, m.progress.Total))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Progress"),
		progressBar,
		status,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Report Table
// =============================================================================

func (m Model) renderReportTable() string {
	if len(m.progress.Reports) == 0 {
		return boxStyle.Width(m.width - 2).Render(
			dimStyle.Render("No trace finished yet."),
		)
	}

	header := tableHeaderStyle.Render(fmt.Sprintf("  %-28s %9s %8s %10s %7s",
		"Trace", "Manifests", "Events", "Bytes", "Failed"))

	rows := []string{sectionHeaderStyle.Render("Reports"), header}
	for i, r := range m.progress.Reports {
		line := fmt.Sprintf("%-28s %9d %8s %10s %7d",
			truncate(filepath.Base(r.TraceDir), 28),
			len(r.Manifests),
			humanize.Comma(int64(r.TotalEvents)),
			stats.FormatBytes(r.TotalBytes),
			r.Failed,
		)
		rows = append(rows, renderRow(line, i, i == m.selected))
	}

	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderRow(line string, i int, selected bool) string {
	switch {
	case selected:
		return tableSelectedStyle.Render("▸ " + line)
	case i%2 == 0:
		return tableRowEvenStyle.Render("  " + line)
	default:
		return tableRowOddStyle.Render("  " + line)
	}
}

// =============================================================================
// Report Totals
// =============================================================================

func (m Model) renderTotals(r *stats.ReportStats) string {
	rows := []string{
		sectionHeaderStyle.Render("Trace " + filepath.Base(r.TraceDir)),
		RenderKeyValue("Segment Events", humanize.Comma(int64(r.TotalEvents))),
		RenderKeyValue("Media Volume", stats.FormatBytes(r.TotalBytes)),
		RenderKeyValue("Bitrate P50/P95", stats.FormatBitrate(r.BitrateP50)+" / "+stats.FormatBitrate(r.BitrateP95)),
		RenderKeyValue("Duration P50/P95", fmt.Sprintf("%.3f s / %.3f s", r.DurationP50, r.DurationP95)),
		RenderKeyValue("Thumbnails", fmt.Sprintf("%d", r.Thumbnails)),
		RenderKeyValue("Requests", fmt.Sprintf("%d", r.Requests)),
		RenderKeyStyled("Failed", fmt.Sprintf("%d", r.Failed), GetFailureStyle(r.Failed, r.Requests)),
	}

	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// =============================================================================
// Manifest Table
// =============================================================================

func (m Model) renderManifestTable(r *stats.ReportStats) string {
	if len(r.Manifests) == 0 {
		return boxStyle.Width(m.width - 2).Render(
			dimStyle.Render("No manifests in this trace. Press 'd' to go back."),
		)
	}

	header := tableHeaderStyle.Render(fmt.Sprintf("  %-6s %-22s %7s %11s %7s %10s %12s",
		"Type", "Video", "Events", "Segments", "Missing", "Bytes", "Bitrate P50"))

	rows := []string{sectionHeaderStyle.Render("Manifests"), header}
	for i, ms := range r.Manifests {
		missing := GetMissingStyle(ms.MissingSegments).Render(fmt.Sprintf("%7d", ms.MissingSegments))
		line := fmt.Sprintf("%-6s %-22s %7d %11s ",
			ms.Type,
			truncate(ms.VideoName, 22),
			ms.Events,
			stats.FormatSegmentRange(ms.FirstSegment, ms.LastSegment),
		)
		tail := fmt.Sprintf(" %10s %12s", stats.FormatBytes(ms.Bytes), stats.FormatBitrate(ms.BitrateP50))
		rows = append(rows, renderRow(line, i, false)+missing+tableRowEvenStyle.Render(tail))
		if notes := manifestNotes(ms); notes != "" {
			rows = append(rows, dimStyle.Render("    "+notes))
		}
	}

	return boxStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// manifestNotes describes the qualities and traits of a manifest row.
func manifestNotes(ms stats.ManifestStats) string {
	var notes []string
	if len(ms.Qualities) > 0 {
		notes = append(notes, "qualities: "+strings.Join(ms.Qualities, ", "))
	}
	if ms.Live {
		notes = append(notes, "live")
	}
	if ms.Smooth {
		notes = append(notes, "smooth streaming")
	}
	return strings.Join(notes, "  ")
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	keys := "q: quit  ↑/↓: select  d: details  r: refresh"
	if m.detailedView {
		keys = "q: quit  esc/d: back  r: refresh"
	}
	if m.metricsAddr != "" {
		keys += "  │  metrics: http://" + m.metricsAddr + "/metrics"
	}
	return footerStyle.Render(keys)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
