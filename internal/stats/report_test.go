package stats

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/manifest"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/usage"
)

func addEvent(m manifest.Manifest, seg int, quality string, size int64, bitrate, duration float64) {
	m.AddEvent(seg, float64(seg), &manifest.Event{
		Type:     m.Type(),
		Segment:  seg,
		Quality:  quality,
		Size:     size,
		Bitrate:  bitrate,
		Duration: duration,
	})
}

func sampleReport() *usage.Report {
	r := usage.NewReport("/traces/one")
	r.RunID = "run-1"

	dash := manifest.NewDASHPlaceholder(nil, "show42")
	addEvent(dash, 0, "720p", 100, 0, 0)
	addEvent(dash, 1, "720p", 1000, 2400000, 2)
	addEvent(dash, 2, "720p", 1000, 2400000, 2)
	addEvent(dash, 5, "360p", 500, 2400000, 2)
	r.Registry().Add(1, dash)

	r.Registry().Add(2, manifest.NewUnknown(nil, "empty"))
	return r
}

func TestAggregate(t *testing.T) {
	s := Aggregate(sampleReport())

	want := []ManifestStats{
		{
			Key:             1_000_000,
			Type:            "DASH",
			VideoName:       "show42",
			Events:          4,
			InitSegments:    1,
			FirstSegment:    1,
			LastSegment:     5,
			MissingSegments: 2,
			Qualities:       []string{"360p", "720p"},
			Bytes:           2600,
			BitrateP50:      2400000,
			BitrateP95:      2400000,
			DurationP50:     2,
			DurationP95:     2,
		},
		{
			Key:          2_000_000,
			Type:         "UNKNOWN",
			VideoName:    "empty",
			FirstSegment: -1,
			LastSegment:  -1,
		},
	}
	if diff := cmp.Diff(want, s.Manifests, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("manifests mismatch (-want +got):\n%s", diff)
	}
	if s.TotalEvents != 4 || s.TotalBytes != 2600 {
		t.Errorf("totals = %d events, %d bytes", s.TotalEvents, s.TotalBytes)
	}
	if s.BitrateP50 != 2400000 {
		t.Errorf("BitrateP50 = %v", s.BitrateP50)
	}
	if s.RunID != "run-1" || s.TraceDir != "/traces/one" {
		t.Errorf("identity = %q %q", s.RunID, s.TraceDir)
	}
}

func TestAggregate_Nil(t *testing.T) {
	if Aggregate(nil) != nil {
		t.Error("Aggregate(nil) should be nil")
	}
}

func TestFormatReportSummary(t *testing.T) {
	out := FormatReportSummary(Aggregate(sampleReport()), SummaryConfig{
		Duration:    90 * time.Second,
		MetricsAddr: "0.0.0.0:17091",
		ReportPath:  "/traces/one/video_usage.json",
	})

	for _, want := range []string{
		"Video Usage Summary",
		"Trace:                  /traces/one",
		"Run ID:                 run-1",
		"Analysis Time:          00:01:30",
		"Manifests:              2",
		"Media Volume:           2.6 kB",
		"show42",
		"1-5",
		"Bitrate P50:          2.4 Mbps",
		"Report written to: /traces/one/video_usage.json",
		"http://0.0.0.0:17091/metrics",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q\n%s", want, out)
		}
	}
}

const openPlaylist = `#EXTM3U
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:7
#EXTINF:6.000,
seg7.ts
`

const smoothDoc = `<?xml version="1.0"?>
<SmoothStreamingMedia MajorVersion="2" MinorVersion="0">
  <StreamIndex Type="video" Name="video">
    <QualityLevel Bitrate="1500000"/>
    <c t="0" d="20000000"/>
  </StreamIndex>
</SmoothStreamingMedia>`

func TestAggregate_ManifestTraits(t *testing.T) {
	live, err := manifest.NewHLS(nil, "news", []byte(openPlaylist))
	if err != nil {
		t.Fatal(err)
	}
	smooth, err := manifest.NewDASH(nil, []byte(smoothDoc))
	if err != nil {
		t.Fatal(err)
	}

	r := usage.NewReport("/traces/two")
	r.Registry().Add(1, live)
	r.Registry().Add(2, smooth)
	r.Registry().Add(3, manifest.NewDASHPlaceholder(nil, "plain"))

	s := Aggregate(r)
	type traits struct{ Live, Smooth bool }
	var got []traits
	for _, ms := range s.Manifests {
		got = append(got, traits{ms.Live, ms.Smooth})
	}
	want := []traits{{true, false}, {false, true}, {false, false}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("traits mismatch (-want +got):\n%s", diff)
	}

	out := FormatReportSummary(s, SummaryConfig{Duration: time.Second})
	for _, want := range []string{"HLS*", "DASH~", "* live playlist"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q\n%s", want, out)
		}
	}
	if strings.Contains(FormatReportSummary(Aggregate(sampleReport()), SummaryConfig{}), "live playlist") {
		t.Error("legend printed without marked manifests")
	}
}

func TestFormatReportSummary_NoReport(t *testing.T) {
	out := FormatReportSummary(nil, SummaryConfig{Duration: time.Second})
	if !strings.Contains(out, "No report was produced") {
		t.Errorf("basic summary = %q", out)
	}
}

func TestFormatBatchSummary(t *testing.T) {
	out := FormatBatchSummary(BatchTotals{
		Traces:          3,
		TraceErrors:     1,
		Segments:        1234,
		SegmentBytes:    2_000_000,
		FailedExchanges: 7,
		TraceP50:        250 * time.Millisecond,
		TraceMax:        time.Second,
	}, SummaryConfig{Duration: time.Hour})

	for _, want := range []string{
		"Run Duration:           01:00:00",
		"Traces:                 3 (1 failed)",
		"Segment Events:         1,234",
		"Media Volume:           2.0 MB",
		"Trace Time P50:         250 ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q\n%s", want, out)
		}
	}
}

func TestFormatHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"duration", FormatDuration(3*time.Hour + 25*time.Minute + 45*time.Second), "03:25:45"},
		{"bytes_small", FormatBytes(42), "42 B"},
		{"bytes_negative", FormatBytes(-1), "0 B"},
		{"bitrate_zero", FormatBitrate(0), "-"},
		{"bitrate_kilo", FormatBitrate(128000), "128.0 kbps"},
		{"ms_sub", FormatMs(500 * time.Microsecond), "500 µs"},
		{"range_none", FormatSegmentRange(-1, -1), "-"},
		{"range_single", FormatSegmentRange(4, 4), "4"},
		{"range", FormatSegmentRange(1, 9), "1-9"},
		{"truncate", truncate("abcdefgh", 4), "abc…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
