package analysis

import (
	"net/url"
	"testing"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/media"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/trace"
)

func TestHLSVideoName(t *testing.T) {
	tests := []struct {
		obj  string
		want string
	}{
		{"/livetv/30/8249/latest.m3u8", "8249"},
		{"/livetv/30/8249/03/playlist.m3u8", "8249"},
		{"/aav/30/B001573958U3/B001573958U3.m3u8", "B001573958U"},
		{"/aav/30/B001844891U3/HLS2/B001844891U0_2.m3u8", "B001844891U"},
		{"/aav/30/B001844891U3/WebVTT1/B001844891U0_7.m3u8", "B001844891U"},
		{"/c3/30/movie/2016_12/B002021484/B002021484U3/B002021484U3.m3u8", "B002021484U"},
		{"/Content/HLS_hls.pr/Live/channel(FNCHD.gmott.1080.mobile)/05.m3u8", "FNCHD_gmott_1080_mobile"},
		{"/Content/HLS_hls.pr/Live/channel(FNCHD.gmott.1080.mobile)/index.m3u8", "FNCHD_gmott_1080_mobile"},
		{"/B002021484U3.m3u8", "B002021484U3"},
		{"/weird-name!.m3u8", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.obj, func(t *testing.T) {
			if got := hlsVideoName(tt.obj); got != tt.want {
				t.Errorf("hlsVideoName(%q) = %q, want %q", tt.obj, got, tt.want)
			}
		})
	}
}

func namingExchange(t *testing.T, raw string) *trace.Exchange {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return &trace.Exchange{
		Method:  trace.MethodGet,
		URL:     u,
		Session: &trace.Session{StartTime: 0.25},
		Response: &trace.Response{
			Timestamp:   1.5,
			FirstPacket: &trace.Packet{Seconds: 1700000000, Microseconds: 42},
		},
	}
}

func TestDebugName(t *testing.T) {
	ex := namingExchange(t, "http://cdn/v/abc_7.ts")
	id := &media.Identity{ID: "abc", Quality: "3", Extension: "ts"}

	tests := []struct {
		name string
		rng  *media.ByteRange
		abs  bool
		want string
	}{
		{"relative", nil, false, "abc_00000007_dl_000001500_S_00000250_Q_3.ts"},
		{"absolute", nil, true, "abc_00000007_dl_1700000000.000042_S_00000250_Q_3.ts"},
		{"byte_range", &media.ByteRange{Start: 0, End: 99}, false, "abc_00000007_R_0-99_dl_000001500_S_00000250_Q_3.ts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id.ByteRange = tt.rng
			if got := debugName(ex, id, 7, tt.abs); got != tt.want {
				t.Errorf("debugName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDebugName_NoQualityNoExtension(t *testing.T) {
	ex := namingExchange(t, "http://cdn/v/abc")
	ex.Session = nil
	got := debugName(ex, &media.Identity{ID: "abc"}, 0, false)
	if want := "abc_00000000_dl_000001500_S_00000000_Q_unknown"; got != want {
		t.Errorf("debugName() = %q, want %q", got, want)
	}
}

func TestDashDumpName(t *testing.T) {
	tests := []struct {
		obj  string
		want string
	}{
		{"http://cdn/vod/show42.mpd", "show42__000001500_ManifestDash.mpd"},
		{"http://cdn/vod/Show.ism/manifest", "Show__000001500_SSMedia.xml"},
		{"http://cdn/live/manifest", "_SSM_manifest__000001500_SSMedia.xml"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := dashDumpName(namingExchange(t, tt.obj), false); got != tt.want {
				t.Errorf("dashDumpName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHLSDumpAndScratchNames(t *testing.T) {
	ex := namingExchange(t, "http://cdn/livetv/30/8249/latest.m3u8")
	if got, want := hlsDumpName(ex, "8249", false), "000001500_8249_ManifestHLS.m3u8"; got != want {
		t.Errorf("hlsDumpName() = %q, want %q", got, want)
	}
	id := media.NewIdentity("show42", ".mp4")
	if got, want := scratchName(12, id), "00000012_show42.mp4"; got != want {
		t.Errorf("scratchName() = %q, want %q", got, want)
	}
	if got, want := preseedHLSName("/tmp/downloads/b.live.m3u8"), "b_live"; got != want {
		t.Errorf("preseedHLSName() = %q, want %q", got, want)
	}
}
