package manifest

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/classify"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/media"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/trace"
)

// HLS is a manifest built from master and media playlists. Later playlist
// downloads for the same video are merged in with Update.
type HLS struct {
	base

	bandwidth      map[string]float64 // Quality label to declared bandwidth
	segments       map[string]int     // Segment file name to media sequence number
	targetDuration float64
	mediaSequence  uint64
	live           bool
}

// NewHLS parses content into an HLS manifest named name.
func NewHLS(ex *trace.Exchange, name string, content []byte) (*HLS, error) {
	m := NewHLSPlaceholder(ex, name)
	if err := m.Update(content); err != nil {
		return nil, err
	}
	return m, nil
}

// NewHLSPlaceholder returns an HLS manifest with empty tables.
func NewHLSPlaceholder(ex *trace.Exchange, name string) *HLS {
	m := &HLS{
		base:      newBase(media.VideoTypeHLS, ex),
		bandwidth: make(map[string]float64),
		segments:  make(map[string]int),
	}
	m.name = name
	return m
}

// Update decodes a master or media playlist and merges it into the tables.
func (m *HLS) Update(content []byte) error {
	if len(content) == 0 {
		return ErrEmptyContent
	}
	if !bytes.HasPrefix(bytes.TrimSpace(content), []byte("#EXTM3U")) {
		return ErrNotManifest
	}

	p, listType, err := m3u8.DecodeFrom(bytes.NewReader(content), false)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotManifest, err)
	}

	switch listType {
	case m3u8.MASTER:
		master, ok := p.(*m3u8.MasterPlaylist)
		if !ok {
			return ErrNotManifest
		}
		m.mergeMaster(master)
	case m3u8.MEDIA:
		pl, ok := p.(*m3u8.MediaPlaylist)
		if !ok {
			return ErrNotManifest
		}
		m.mergeMedia(pl)
	default:
		return ErrNotManifest
	}

	m.remember(content)
	return nil
}

func (m *HLS) mergeMaster(master *m3u8.MasterPlaylist) {
	for _, v := range master.Variants {
		if v == nil || v.Iframe || v.Bandwidth == 0 {
			continue
		}
		bw := float64(v.Bandwidth)
		for _, label := range QualityLabels(v.URI) {
			if _, ok := m.bandwidth[label]; !ok {
				m.bandwidth[label] = bw
			}
		}
		key := strconv.FormatUint(uint64(v.Bandwidth), 10)
		if _, ok := m.bandwidth[key]; !ok {
			m.bandwidth[key] = bw
		}
		if v.Chunklist != nil {
			m.mergeMedia(v.Chunklist)
		}
	}
}

func (m *HLS) mergeMedia(pl *m3u8.MediaPlaylist) {
	if pl.TargetDuration > 0 {
		m.targetDuration = pl.TargetDuration
	}
	m.mediaSequence = pl.SeqNo
	m.live = !pl.Closed

	for _, seg := range pl.Segments {
		// The decoder leaves trailing nil slots in its ring buffer.
		if seg == nil {
			continue
		}
		name := classify.FullName(stripQuery(seg.URI))
		if name == "" {
			continue
		}
		m.segments[name] = int(seg.SeqId)
	}
}

func stripQuery(uri string) string {
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		return uri[:i]
	}
	return uri
}

var (
	reDigits     = regexp.MustCompile(`^\d+$`)
	reHLSLabel   = regexp.MustCompile(`^HLS\d+$`)
	reTrailingNo = regexp.MustCompile(`(\d+)$`)
)

// QualityLabels derives the labels a variant playlist may be referred to by:
// numeric directory components, "HLS<n>" components and the trailing number
// of the playlist file name. Numbers are also listed without leading zeros.
func QualityLabels(uri string) []string {
	uri = stripQuery(uri)
	var labels []string
	add := func(s string) {
		labels = append(labels, s)
		if reDigits.MatchString(s) {
			if trimmed := strings.TrimLeft(s, "0"); trimmed != "" && trimmed != s {
				labels = append(labels, trimmed)
			}
		}
	}

	dir, file := path.Split(uri)
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		if reDigits.MatchString(part) || reHLSLabel.MatchString(part) {
			add(part)
		}
	}
	stem := strings.TrimSuffix(file, path.Ext(file))
	if m := reTrailingNo.FindStringSubmatch(stem); m != nil {
		add(m[1])
	}
	return labels
}

// ParseSegment resolves the segment from the identity, then from the media
// sequence numbers of the playlists seen so far.
func (m *HLS) ParseSegment(name string, id *media.Identity) int {
	if id != nil && id.Resolved() {
		return id.Segment
	}
	if n, ok := m.segments[classify.FullName(stripQuery(name))]; ok {
		return n
	}
	return media.SegmentUnresolved
}

// Bitrate looks up a quality label.
func (m *HLS) Bitrate(quality string) (float64, bool) {
	bw, ok := m.bandwidth[quality]
	return bw, ok
}

// Duration is the playlist target duration.
func (m *HLS) Duration() float64 {
	return m.targetDuration
}

// Timescale is the 90 kHz MPEG-TS clock.
func (m *HLS) Timescale() float64 {
	return 90000
}

// Live reports whether the last media playlist was still open.
func (m *HLS) Live() bool {
	return m.live
}

// MediaSequence is the first sequence number of the last media playlist.
func (m *HLS) MediaSequence() uint64 {
	return m.mediaSequence
}
