package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/media"
)

const masterPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=800000,RESOLUTION=640x360
01/playlist.m3u8
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=2400000,RESOLUTION=1280x720
03/playlist.m3u8
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=4000000
HLS5/B001844891U0_5.m3u8
`

const mediaPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:120
#EXTINF:6.000,
seg120.ts
#EXTINF:6.000,
seg121.ts?token=abc
#EXTINF:5.500,
seg122.ts
`

const mediaPlaylistNext = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:123
#EXTINF:6.000,
seg123.ts
#EXT-X-ENDLIST
`

func TestNewHLS_Master(t *testing.T) {
	m, err := NewHLS(nil, "8249", []byte(masterPlaylist))
	require.NoError(t, err)

	assert.Equal(t, media.VideoTypeHLS, m.Type())
	assert.Equal(t, "8249", m.VideoName())

	tests := []struct {
		quality string
		want    float64
	}{
		{"01", 800000},
		{"1", 800000},
		{"3", 2400000},
		{"HLS5", 4000000},
		{"5", 4000000},
		{"2400000", 2400000},
	}
	for _, tt := range tests {
		bw, ok := m.Bitrate(tt.quality)
		if assert.True(t, ok, "quality %q", tt.quality) {
			assert.Equal(t, tt.want, bw, "quality %q", tt.quality)
		}
	}
	_, ok := m.Bitrate("7")
	assert.False(t, ok)
}

func TestHLS_MediaAndUpdate(t *testing.T) {
	m, err := NewHLS(nil, "live", []byte(masterPlaylist))
	require.NoError(t, err)
	require.NoError(t, m.Update([]byte(mediaPlaylist)))

	assert.Equal(t, 6.0, m.Duration())
	assert.True(t, m.Live())
	assert.Equal(t, uint64(120), m.MediaSequence())

	id := media.NewIdentity("live", "ts")
	assert.Equal(t, 120, m.ParseSegment("seg120.ts", id))
	assert.Equal(t, 121, m.ParseSegment("/path/seg121.ts", id))
	assert.Equal(t, media.SegmentUnresolved, m.ParseSegment("seg999.ts", id))

	require.NoError(t, m.Update([]byte(mediaPlaylistNext)))
	assert.Equal(t, 123, m.ParseSegment("seg123.ts", id))
	assert.Equal(t, 122, m.ParseSegment("seg122.ts", id), "older segments are kept")
	assert.False(t, m.Live())

	_, ok := m.Bitrate("3")
	assert.True(t, ok, "master table kept across media updates")
}

func TestHLS_Duplicate(t *testing.T) {
	m, err := NewHLS(nil, "v", []byte(mediaPlaylist))
	require.NoError(t, err)
	assert.True(t, m.IsDuplicate([]byte(mediaPlaylist)))
	assert.False(t, m.IsDuplicate([]byte(mediaPlaylistNext)))
	assert.False(t, m.IsDuplicate(nil))
}

func TestHLS_UpdateErrors(t *testing.T) {
	m, err := NewHLS(nil, "v", []byte(mediaPlaylist))
	require.NoError(t, err)

	assert.ErrorIs(t, m.Update(nil), ErrEmptyContent)
	assert.ErrorIs(t, m.Update([]byte("<MPD/>")), ErrNotManifest)
	assert.Equal(t, 120, m.ParseSegment("seg120.ts", nil), "state kept after failures")
}

func TestQualityLabels(t *testing.T) {
	tests := []struct {
		uri  string
		want []string
	}{
		{"03/playlist.m3u8", []string{"03", "3"}},
		{"HLS2/B001844891U0_2.m3u8", []string{"HLS2", "2"}},
		{"/livetv/30/8249/05/playlist.m3u8?x=1", []string{"30", "8249", "05", "5"}},
		{"index.m3u8", nil},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			assert.Equal(t, tt.want, QualityLabels(tt.uri))
		})
	}
}

func TestUnknown(t *testing.T) {
	m := NewUnknown(nil, "clip")
	assert.Equal(t, media.VideoTypeUnknown, m.Type())
	assert.Equal(t, 4, m.ParseSegment("x", &media.Identity{Segment: 4}))
	assert.Equal(t, media.SegmentUnresolved, m.ParseSegment("x", nil))
	_, ok := m.Bitrate("any")
	assert.False(t, ok)
	assert.Zero(t, m.Duration())
	_, ok = m.SegmentAt(10)
	assert.False(t, ok)

	m.SetDelay(1.5)
	assert.Equal(t, 1.5, m.Delay())
	m.SetVideoName("renamed")
	assert.Equal(t, "renamed", m.VideoName())
	assert.ErrorIs(t, m.Update(nil), ErrEmptyContent)
}
