package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/media"
)

const sampleRules = `
rules:
  - description: dash segments with byte range header
    type: DASH
    url: 'cdn\.example\.com/dash/'
    pattern: '/dash/([a-z0-9]+)_video_(\d+)_(\d+)\.(mp4)'
    request_header: 'Range: bytes=(\d+)-(\d+)'
    tags: [id, quality, segment, extension, byte_start, byte_end]
  - description: hls live
    type: HLS
    url: '/live/'
    pattern: '/live/([A-Za-z]+)/(\d+)/seg(\d+)\.ts'
    tags: [id, quality, segment]
`

func TestParse(t *testing.T) {
	set, err := Parse([]byte(sampleRules))
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("rules:\n  - description: x\n    bogus: 1\n"))
	assert.Error(t, err)
}

func TestParse_Empty(t *testing.T) {
	set, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
	assert.Nil(t, set.Find("http://anything/"))
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		spec RuleSpec
	}{
		{"missing_url", RuleSpec{Pattern: "x"}},
		{"missing_pattern", RuleSpec{URL: "x"}},
		{"bad_regex", RuleSpec{URL: "(", Pattern: "x"}},
		{"bad_tag", RuleSpec{URL: "x", Pattern: "x", Tags: []Tag{"colour"}}},
		{"bad_header", RuleSpec{URL: "x", Pattern: "x", ResponseHeader: "["}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile([]RuleSpec{tt.spec})
			assert.Error(t, err)
		})
	}
}

func TestFindMatchIdentity_DASH(t *testing.T) {
	set, err := Parse([]byte(sampleRules))
	require.NoError(t, err)

	uri := "http://cdn.example.com/dash/abc123_video_720_5.mp4"
	rule := set.Find(uri)
	require.NotNil(t, rule)
	assert.Equal(t, media.VideoTypeDASH, rule.VideoType)

	values := rule.Match(uri, "Range: bytes=100-199\r\n", "")
	assert.Equal(t, []string{"abc123", "720", "5", "mp4", "100", "199"}, values)

	id := rule.Identity(values)
	require.NotNil(t, id)
	assert.Equal(t, "abc123", id.ID)
	assert.Equal(t, "720", id.Quality)
	assert.Equal(t, 5, id.Segment)
	assert.Equal(t, "mp4", id.Extension)
	require.NotNil(t, id.ByteRange)
	assert.Equal(t, media.ByteRange{Start: 100, End: 199}, *id.ByteRange)
}

func TestFindMatchIdentity_HLS(t *testing.T) {
	set, err := Parse([]byte(sampleRules))
	require.NoError(t, err)

	uri := "http://tv.example.com/live/news/3/seg42.ts"
	rule := set.Find(uri)
	require.NotNil(t, rule)
	assert.Equal(t, media.VideoTypeHLS, rule.VideoType)

	id := rule.Identity(rule.Match(uri, "", ""))
	require.NotNil(t, id)
	assert.Equal(t, "news", id.ID)
	assert.Equal(t, "3", id.Quality)
	assert.Equal(t, 42, id.Segment)
	assert.Nil(t, id.ByteRange)
}

func TestIdentity_NoMatch(t *testing.T) {
	set, err := Parse([]byte(sampleRules))
	require.NoError(t, err)

	uri := "http://tv.example.com/live/not-a-segment.ts"
	rule := set.Find(uri)
	require.NotNil(t, rule)
	assert.Nil(t, rule.Identity(rule.Match(uri, "", "")))
}

func TestIdentity_BadSegmentStaysUnresolved(t *testing.T) {
	r := &Rule{Tags: []Tag{TagID, TagSegment}}
	id := r.Identity([]string{"v", "x1"})
	require.NotNil(t, id)
	assert.Equal(t, media.SegmentUnresolved, id.Segment)
	assert.False(t, id.Resolved())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRules), 0o644))

	set, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNilSet(t *testing.T) {
	var s *Set
	assert.Nil(t, s.Find("x"))
	assert.Equal(t, 0, s.Len())
}
