// Package stats summarizes video usage reports for display at program exit
// and in the report viewer.
//
// Bitrate and duration percentiles are estimated with T-Digests so a report
// of any size is summarized in bounded memory.
package stats

import (
	"slices"

	"github.com/influxdata/tdigest"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/manifest"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/usage"
)

// digestCompression bounds each digest to roughly 100 centroids.
const digestCompression = 100

// ManifestStats summarizes the events of one manifest.
type ManifestStats struct {
	Key       usage.Key
	Type      string
	VideoName string
	Live      bool // HLS media playlist still open at its last download
	Smooth    bool // DASH manifest was a Smooth Streaming document

	Events          int
	InitSegments    int
	FirstSegment    int
	LastSegment     int
	MissingSegments int // Segment numbers between first and last never downloaded
	Qualities       []string
	Bytes           int64
	Thumbnails      int

	BitrateP50  float64
	BitrateP95  float64
	DurationP50 float64
	DurationP95 float64
}

// ReportStats is a snapshot summary of one usage report.
type ReportStats struct {
	TraceDir string
	RunID    string

	Manifests []ManifestStats

	TotalEvents int
	TotalBytes  int64
	Thumbnails  int
	Requests    int
	Failed      int

	BitrateP50  float64
	BitrateP95  float64
	DurationP50 float64
	DurationP95 float64
}

type liveManifest interface{ Live() bool }

type smoothManifest interface{ Smooth() bool }

// quantiles collects samples into a digest, ignoring non-positive values.
type quantiles struct {
	td *tdigest.TDigest
	n  int
}

func newQuantiles() *quantiles {
	return &quantiles{td: tdigest.NewWithCompression(digestCompression)}
}

func (q *quantiles) add(v float64) {
	if v <= 0 {
		return
	}
	q.td.Add(v, 1)
	q.n++
}

// at returns the q-th quantile, or 0 without samples.
func (q *quantiles) at(p float64) float64 {
	if q.n == 0 {
		return 0
	}
	return q.td.Quantile(p)
}

// Aggregate computes the summary of report.
func Aggregate(report *usage.Report) *ReportStats {
	if report == nil {
		return nil
	}

	s := &ReportStats{
		TraceDir: report.TraceDir,
		RunID:    report.RunID,
		Requests: report.Requests().Len(),
		Failed:   len(report.Failed()),
	}

	allBitrates, allDurations := newQuantiles(), newQuantiles()
	keys := report.Registry().Keys()
	for i, m := range report.Manifests() {
		ms := manifestStats(m, allBitrates, allDurations)
		ms.Key = keys[i]
		s.Manifests = append(s.Manifests, ms)

		s.TotalEvents += ms.Events
		s.TotalBytes += ms.Bytes
		s.Thumbnails += ms.Thumbnails
	}

	s.BitrateP50 = allBitrates.at(0.50)
	s.BitrateP95 = allBitrates.at(0.95)
	s.DurationP50 = allDurations.at(0.50)
	s.DurationP95 = allDurations.at(0.95)
	return s
}

func manifestStats(m manifest.Manifest, allBitrates, allDurations *quantiles) ManifestStats {
	ms := ManifestStats{
		Type:         m.Type().String(),
		VideoName:    m.VideoName(),
		FirstSegment: -1,
		LastSegment:  -1,
	}
	if l, ok := m.(liveManifest); ok {
		ms.Live = l.Live()
	}
	if s, ok := m.(smoothManifest); ok {
		ms.Smooth = s.Smooth()
	}

	bitrates, durations := newQuantiles(), newQuantiles()
	qualities := make(map[string]struct{})
	seen := make(map[int]struct{})

	for _, ev := range m.Events().All() {
		ms.Events++
		ms.Bytes += ev.Size
		if len(ev.Thumbnail) > 0 {
			ms.Thumbnails++
		}
		qualities[ev.Quality] = struct{}{}

		bitrates.add(ev.Bitrate)
		allBitrates.add(ev.Bitrate)

		switch {
		case ev.Segment == 0:
			ms.InitSegments++
			continue
		case ev.Segment < 0:
			continue
		}
		durations.add(ev.Duration)
		allDurations.add(ev.Duration)

		seen[ev.Segment] = struct{}{}
		if ms.FirstSegment < 0 || ev.Segment < ms.FirstSegment {
			ms.FirstSegment = ev.Segment
		}
		if ev.Segment > ms.LastSegment {
			ms.LastSegment = ev.Segment
		}
	}

	if ms.FirstSegment >= 0 {
		ms.MissingSegments = ms.LastSegment - ms.FirstSegment + 1 - len(seen)
	}
	for q := range qualities {
		ms.Qualities = append(ms.Qualities, q)
	}
	slices.Sort(ms.Qualities)

	ms.BitrateP50 = bitrates.at(0.50)
	ms.BitrateP95 = bitrates.at(0.95)
	ms.DurationP50 = durations.at(0.50)
	ms.DurationP95 = durations.at(0.95)
	return ms
}
