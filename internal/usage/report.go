package usage

import (
	"encoding/json"
	"fmt"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/manifest"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/trace"
)

// Report is the aggregate produced for one trace. It is mutated only while
// the analysis runs.
type Report struct {
	TraceDir string
	RunID    string

	registry *Registry
	requests *trace.RequestMap
	failed   []*trace.Exchange
	isFailed map[*trace.Exchange]struct{}
}

// NewReport returns an empty report for traceDir.
func NewReport(traceDir string) *Report {
	return &Report{
		TraceDir: traceDir,
		registry: NewRegistry(),
		requests: trace.NewRequestMap(),
		isFailed: make(map[*trace.Exchange]struct{}),
	}
}

// Registry returns the manifest registry.
func (r *Report) Registry() *Registry {
	return r.registry
}

// AddRequest records an exchange that produced a manifest or segment event.
func (r *Report) AddRequest(ex *trace.Exchange) {
	r.requests.Add(ex)
}

// AddFailed records an exchange whose content could not be processed.
func (r *Report) AddFailed(ex *trace.Exchange) {
	if _, ok := r.isFailed[ex]; ok {
		return
	}
	r.isFailed[ex] = struct{}{}
	r.failed = append(r.failed, ex)
}

// IsFailed reports whether ex was recorded as failed.
func (r *Report) IsFailed(ex *trace.Exchange) bool {
	_, ok := r.isFailed[ex]
	return ok
}

// Failed returns the failed exchanges in the order they were recorded.
func (r *Report) Failed() []*trace.Exchange {
	out := make([]*trace.Exchange, len(r.failed))
	copy(out, r.failed)
	return out
}

// Requests returns the processed request map.
func (r *Report) Requests() *trace.RequestMap {
	return r.requests
}

// Manifests returns the registered manifests in key order.
func (r *Report) Manifests() []manifest.Manifest {
	return r.registry.Manifests()
}

// EventCount returns the number of segment events across all manifests.
func (r *Report) EventCount() int {
	n := 0
	for _, m := range r.registry.Manifests() {
		n += m.Events().Len()
	}
	return n
}

func (r *Report) String() string {
	return fmt.Sprintf("trace=%s manifests=%d events=%d requests=%d failed=%d",
		r.TraceDir, r.registry.Len(), r.EventCount(), r.requests.Len(), len(r.failed))
}

// Snapshot is the serialisable view of a Report.
type Snapshot struct {
	TraceDir  string             `json:"trace_dir"`
	RunID     string             `json:"run_id,omitempty"`
	Manifests []ManifestSnapshot `json:"manifests"`
	Requests  []RequestSnapshot  `json:"requests"`
	Failed    []RequestSnapshot  `json:"failed"`
}

// ManifestSnapshot is one registry entry.
type ManifestSnapshot struct {
	Key       int64           `json:"key_us"`
	Type      string          `json:"type"`
	VideoName string          `json:"video_name"`
	Delay     float64         `json:"delay"`
	Duration  float64         `json:"segment_duration"`
	Events    []EventSnapshot `json:"events"`
}

// EventSnapshot is one segment event.
type EventSnapshot struct {
	Key        string   `json:"key"`
	Segment    int      `json:"segment"`
	Quality    string   `json:"quality"`
	Bitrate    float64  `json:"bitrate"`
	Duration   float64  `json:"duration"`
	StartTime  float64  `json:"start_time"`
	Size       int64    `json:"size"`
	Timestamp  float64  `json:"timestamp"`
	Thumbnail  bool     `json:"has_thumbnail"`
	ByteRanges []string `json:"byte_ranges,omitempty"`
	URI        string   `json:"uri,omitempty"`
}

// RequestSnapshot is one exchange.
type RequestSnapshot struct {
	Timestamp float64 `json:"timestamp"`
	URI       string  `json:"uri"`
}

// Snapshot builds the serialisable view.
func (r *Report) Snapshot() Snapshot {
	s := Snapshot{
		TraceDir:  r.TraceDir,
		RunID:     r.RunID,
		Manifests: []ManifestSnapshot{},
		Requests:  []RequestSnapshot{},
		Failed:    []RequestSnapshot{},
	}

	keys := r.registry.Keys()
	for i, m := range r.registry.Manifests() {
		ms := ManifestSnapshot{
			Key:       int64(keys[i]),
			Type:      m.Type().String(),
			VideoName: m.VideoName(),
			Delay:     m.Delay(),
			Duration:  m.Duration(),
			Events:    []EventSnapshot{},
		}
		for _, entry := range m.Events().Entries() {
			ms.Events = append(ms.Events, eventSnapshot(entry))
		}
		s.Manifests = append(s.Manifests, ms)
	}

	for _, ex := range r.requests.Exchanges() {
		s.Requests = append(s.Requests, RequestSnapshot{Timestamp: ex.Timestamp, URI: ex.URI()})
	}
	for _, ex := range r.failed {
		s.Failed = append(s.Failed, RequestSnapshot{Timestamp: ex.Timestamp, URI: ex.URI()})
	}
	return s
}

func eventSnapshot(entry manifest.Entry) EventSnapshot {
	ev := entry.Event
	es := EventSnapshot{
		Key:       entry.Key,
		Segment:   ev.Segment,
		Quality:   ev.Quality,
		Bitrate:   ev.Bitrate,
		Duration:  ev.Duration,
		StartTime: ev.StartTime,
		Size:      ev.Size,
		Timestamp: ev.Timestamp,
		Thumbnail: len(ev.Thumbnail) > 0,
	}
	for _, br := range ev.ByteRanges {
		es.ByteRanges = append(es.ByteRanges, br.String())
	}
	if ev.Exchange != nil {
		es.URI = ev.Exchange.URI()
	}
	return es
}

// MarshalIndent renders the snapshot as indented JSON.
func (r *Report) MarshalIndent() ([]byte, error) {
	data, err := json.MarshalIndent(r.Snapshot(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return append(data, '\n'), nil
}
