package manifest

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/media"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/trace"
)

const templateMPD = `<?xml version="1.0" encoding="UTF-8"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static" maxSegmentDuration="PT4S">
  <Period id="0">
    <AdaptationSet contentType="video" mimeType="video/mp4">
      <SegmentTemplate timescale="90000" duration="180000" startNumber="1"
                       media="show42_$RepresentationID$_$Number%05d$.m4s"
                       initialization="show42_$RepresentationID$_init.mp4"/>
      <Representation id="720p" bandwidth="2400000"/>
      <Representation id="360p" bandwidth="800000"/>
    </AdaptationSet>
    <AdaptationSet contentType="audio" mimeType="audio/mp4">
      <Representation id="aac" bandwidth="128000"/>
    </AdaptationSet>
  </Period>
</MPD>`

const listMPD = `<MPD>
  <Period>
    <AdaptationSet mimeType="video/mp4">
      <Representation id="1" bandwidth="1500000">
        <BaseURL>clipA_video_1500.mp4</BaseURL>
        <SegmentList timescale="1000" duration="2000" startNumber="0">
          <SegmentURL mediaRange="0-999"/>
          <SegmentURL mediaRange="1000-1999"/>
          <SegmentURL mediaRange="2000-2999"/>
        </SegmentList>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`

const timelineMPD = `<MPD>
  <Period>
    <AdaptationSet contentType="video">
      <SegmentTemplate timescale="1000" startNumber="10" media="live_$Time$.mp4">
        <SegmentTimeline>
          <S t="5000" d="2000" r="2"/>
          <S d="1000"/>
        </SegmentTimeline>
      </SegmentTemplate>
      <Representation id="hd" bandwidth="3000000"/>
    </AdaptationSet>
  </Period>
</MPD>`

const smoothManifest = `<?xml version="1.0"?>
<SmoothStreamingMedia MajorVersion="2" MinorVersion="0" Duration="600000000">
  <StreamIndex Type="video" Name="video" Url="QualityLevels({bitrate})/Fragments(video={start time})">
    <QualityLevel Bitrate="3000000"/>
    <QualityLevel Bitrate="1500000"/>
    <c t="0" d="20000000"/>
    <c d="20000000"/>
  </StreamIndex>
  <StreamIndex Type="audio" Name="audio">
    <QualityLevel Bitrate="128000"/>
  </StreamIndex>
</SmoothStreamingMedia>`

func TestNewDASH_Template(t *testing.T) {
	m, err := NewDASH(nil, []byte(templateMPD))
	require.NoError(t, err)

	assert.Equal(t, media.VideoTypeDASH, m.Type())
	assert.True(t, m.IsType(media.VideoTypeDASH))
	assert.Equal(t, "show42", m.VideoName())
	assert.Equal(t, 90000.0, m.Timescale())
	assert.InDelta(t, 2.0, m.Duration(), 1e-9)

	bw, ok := m.Bitrate("720p")
	require.True(t, ok)
	assert.Equal(t, 2400000.0, bw)
	_, ok = m.Bitrate("aac")
	assert.False(t, ok, "audio representations are not indexed")

	assert.Equal(t, 7, m.ParseSegment("show42_720p_00007.m4s", media.NewIdentity("show42", "m4s")))
	assert.Equal(t, media.SegmentUnresolved, m.ParseSegment("other.m4s", media.NewIdentity("x", "m4s")))

	resolved := &media.Identity{Segment: 3}
	assert.Equal(t, 3, m.ParseSegment("show42_720p_00007.m4s", resolved), "identity wins")

	seg, ok := m.SegmentAt(180000 * 4)
	require.True(t, ok)
	assert.Equal(t, 5, seg)
}

func TestNewDASH_SegmentListRanges(t *testing.T) {
	m, err := NewDASH(nil, []byte(listMPD))
	require.NoError(t, err)

	assert.Equal(t, "clipA", m.VideoName())
	bw, ok := m.Bitrate("_video_1500.mp4")
	require.True(t, ok)
	assert.Equal(t, 1500000.0, bw)

	id := media.NewIdentity("clipA", "mp4")
	id.ByteRange = &media.ByteRange{Start: 2000, End: 2999}
	assert.Equal(t, 2, m.ParseSegment("clipA_video_1500.mp4", id))
	assert.InDelta(t, 2.0, m.Duration(), 1e-9)
}

func TestNewDASH_Timeline(t *testing.T) {
	m, err := NewDASH(nil, []byte(timelineMPD))
	require.NoError(t, err)

	tests := []struct {
		decode uint64
		want   int
		ok     bool
	}{
		{4999, 0, false},
		{5000, 10, true},
		{7000, 11, true},
		{9500, 12, true},
		{11000, 13, true},
		{50000, 13, true},
	}
	for _, tt := range tests {
		got, ok := m.SegmentAt(tt.decode)
		assert.Equal(t, tt.ok, ok, "decode %d", tt.decode)
		if tt.ok {
			assert.Equal(t, tt.want, got, "decode %d", tt.decode)
		}
	}

	assert.Equal(t, 11, m.ParseSegment("live_7000.mp4", media.NewIdentity("live", "mp4")))
}

func TestNewDASH_Smooth(t *testing.T) {
	u, _ := url.Parse("http://cdn.example.com/vod/Show.ism/manifest")
	ex := &trace.Exchange{Method: "GET", URL: u}

	m, err := NewDASH(ex, []byte(smoothManifest))
	require.NoError(t, err)

	assert.True(t, m.Smooth())
	assert.Equal(t, "Show", m.VideoName())
	assert.Equal(t, float64(smoothTimescale), m.Timescale())
	_, ok := m.Bitrate("1500000")
	assert.True(t, ok)
	_, ok = m.Bitrate("128000")
	assert.False(t, ok)

	seg, ok := m.SegmentAt(25000000)
	require.True(t, ok)
	assert.Equal(t, 1, seg)
	assert.Same(t, ex, m.Exchange())
}

func TestNewDASH_Errors(t *testing.T) {
	_, err := NewDASH(nil, nil)
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = NewDASH(nil, []byte("<html><body/></html>"))
	assert.ErrorIs(t, err, ErrNotManifest)

	_, err = NewDASH(nil, []byte("not xml at all"))
	assert.True(t, errors.Is(err, ErrNotManifest))
}

func TestDASH_UpdateKeepsStateOnFailure(t *testing.T) {
	m, err := NewDASH(nil, []byte(templateMPD))
	require.NoError(t, err)

	require.Error(t, m.Update([]byte("<MPD><Period>")))
	_, ok := m.Bitrate("720p")
	assert.True(t, ok, "tables survive a failed update")
	assert.True(t, m.IsDuplicate([]byte(templateMPD)))
	assert.False(t, m.IsDuplicate([]byte(listMPD)))
}

func TestDASH_InitData(t *testing.T) {
	m := NewDASHPlaceholder(nil, "clip")
	_, ok := m.InitData("720p")
	assert.False(t, ok)

	m.SetInitData("720p", []byte{1, 2, 3})
	data, ok := m.InitData("720p")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, data)
	assert.Equal(t, float64(DefaultTimescale), m.Timescale())
}

func TestTemplatePattern(t *testing.T) {
	re, err := templatePattern("seg-$Number$-$Bandwidth$.m4s")
	require.NoError(t, err)
	m := re.FindStringSubmatch("seg-12-800000.m4s")
	require.NotNil(t, m)
	assert.Equal(t, "12", m[re.SubexpIndex("number")])

	_, err = templatePattern("seg-$Number.m4s")
	assert.Error(t, err)
}

func TestParseISODuration(t *testing.T) {
	d, err := parseISODuration("PT1M2.5S")
	require.NoError(t, err)
	assert.InDelta(t, 62.5, d.Seconds(), 1e-9)

	_, err = parseISODuration("P1D")
	assert.Error(t, err)
}
