package manifest

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/classify"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/media"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/trace"
)

// DASH is a manifest parsed from an MPD or a Smooth Streaming document.
type DASH struct {
	base
	tables dashTables
}

// dashTables is everything derived from one manifest download. Update swaps
// it wholesale so a parse failure leaves the previous tables in place.
type dashTables struct {
	smooth      bool
	timescale   float64
	segDuration uint64 // Ticks, 0 when the manifest uses a timeline
	maxDuration float64
	startNumber int
	timeline    []uint64 // Start ticks of each timeline segment
	bandwidth   map[string]float64
	segments    map[string]int // Media file name to segment number
	ranges      map[int64]int  // Media range start to segment number
	templates   []*regexp.Regexp
	nameHint    string
}

// NewDASH parses content into a DASH manifest anchored at ex. ex may be nil
// for manifests loaded from disk.
func NewDASH(ex *trace.Exchange, content []byte) (*DASH, error) {
	m := &DASH{base: newBase(media.VideoTypeDASH, ex)}
	if err := m.Update(content); err != nil {
		return nil, err
	}
	m.name = m.deriveName()
	return m, nil
}

// NewDASHPlaceholder returns a DASH manifest with no parsed content, used
// when media is seen before any manifest.
func NewDASHPlaceholder(ex *trace.Exchange, name string) *DASH {
	m := &DASH{base: newBase(media.VideoTypeDASH, ex)}
	m.tables = newDashTables()
	m.name = name
	return m
}

func newDashTables() dashTables {
	return dashTables{
		timescale:   DefaultTimescale,
		startNumber: 1,
		bandwidth:   make(map[string]float64),
		segments:    make(map[string]int),
		ranges:      make(map[int64]int),
	}
}

// Smooth reports whether the manifest is a Smooth Streaming document.
func (m *DASH) Smooth() bool {
	return m.tables.smooth
}

// Update reparses the manifest from content.
func (m *DASH) Update(content []byte) error {
	if len(content) == 0 {
		return ErrEmptyContent
	}
	root, err := rootElement(content)
	if err != nil {
		return err
	}

	var t dashTables
	switch root {
	case rootMPD:
		t, err = parseMPD(content)
	case rootSmooth:
		t, err = parseSmooth(content)
	default:
		return fmt.Errorf("%w: root element %q", ErrNotManifest, root)
	}
	if err != nil {
		return err
	}

	m.tables = t
	m.remember(content)
	return nil
}

func parseMPD(content []byte) (dashTables, error) {
	var doc mpd
	if err := xml.Unmarshal(content, &doc); err != nil {
		return dashTables{}, fmt.Errorf("%w: %v", ErrNotManifest, err)
	}

	t := newDashTables()
	if d, err := parseISODuration(doc.MaxSegmentDuration); err == nil {
		t.maxDuration = d.Seconds()
	}

	seen := make(map[string]bool)
	addTemplate := func(st *segmentTemplate) error {
		if st == nil {
			return nil
		}
		t.applyTiming(st.Timescale, st.Duration, st.StartNumber)
		if st.Timeline != nil && t.timeline == nil {
			t.timeline = expandTimeline(st.Timeline.S)
		}
		if st.Media == "" || seen[st.Media] {
			return nil
		}
		seen[st.Media] = true
		re, err := templatePattern(classify.FullName(st.Media))
		if err != nil {
			return err
		}
		t.templates = append(t.templates, re)
		t.hint(st.Media)
		return nil
	}
	addList := func(sl *segmentList, bw float64) {
		if sl == nil {
			return
		}
		t.applyTiming(sl.Timescale, sl.Duration, sl.StartNumber)
		start := 1
		if sl.StartNumber != nil {
			start = *sl.StartNumber
		}
		for i, u := range sl.URLs {
			n := start + i
			if u.Media != "" {
				full := classify.FullName(u.Media)
				t.segments[full] = n
				t.addBandwidth(full, bw)
				t.addBandwidth(classify.TruncateFrom(full, "_"), bw)
				t.hint(u.Media)
			}
			if s, ok := rangeStart(u.MediaRange); ok {
				t.ranges[s] = n
			}
		}
	}

	for _, p := range doc.Periods {
		for _, set := range p.Sets {
			if !isVideoSet(set.ContentType, set.MimeType) {
				continue
			}
			if err := addTemplate(set.SegmentTemplate); err != nil {
				return dashTables{}, fmt.Errorf("%w: %v", ErrNotManifest, err)
			}
			for _, rep := range set.Representations {
				if !isVideoSet("", rep.MimeType) {
					continue
				}
				t.addBandwidth(rep.ID, rep.Bandwidth)
				baseURL := firstNonEmpty(rep.BaseURL, p.BaseURL, doc.BaseURL)
				if rep.BaseURL != "" {
					full := classify.FullName(rep.BaseURL)
					t.addBandwidth(full, rep.Bandwidth)
					t.addBandwidth(classify.TruncateFrom(full, "_"), rep.Bandwidth)
				}
				if baseURL != "" {
					t.hint(baseURL)
				}
				if err := addTemplate(rep.SegmentTemplate); err != nil {
					return dashTables{}, fmt.Errorf("%w: %v", ErrNotManifest, err)
				}
				addList(set.SegmentList, rep.Bandwidth)
				addList(rep.SegmentList, rep.Bandwidth)
			}
		}
	}
	return t, nil
}

func parseSmooth(content []byte) (dashTables, error) {
	var doc smoothMedia
	if err := xml.Unmarshal(content, &doc); err != nil {
		return dashTables{}, fmt.Errorf("%w: %v", ErrNotManifest, err)
	}

	t := newDashTables()
	t.smooth = true
	t.startNumber = 0
	t.timescale = smoothTimescale
	if doc.TimeScale > 0 {
		t.timescale = float64(doc.TimeScale)
	}

	for _, s := range doc.Streams {
		if !strings.EqualFold(s.Type, "video") {
			continue
		}
		for _, lvl := range s.Levels {
			if bw, err := strconv.ParseFloat(lvl.Bitrate, 64); err == nil {
				t.addBandwidth(lvl.Bitrate, bw)
			}
		}
		if t.timeline == nil {
			entries := make([]timelineEntry, len(s.Chunks))
			for i, c := range s.Chunks {
				entries[i] = timelineEntry{T: c.T, D: c.D}
			}
			t.timeline = expandTimeline(entries)
		}
	}
	return t, nil
}

func (t *dashTables) applyTiming(timescale, duration uint64, start *int) {
	if timescale > 0 {
		t.timescale = float64(timescale)
	}
	if duration > 0 && t.segDuration == 0 {
		t.segDuration = duration
	}
	if start != nil {
		t.startNumber = *start
	}
}

func (t *dashTables) addBandwidth(key string, bw float64) {
	if key == "" || bw <= 0 {
		return
	}
	if _, ok := t.bandwidth[key]; !ok {
		t.bandwidth[key] = bw
	}
}

// hint records the first usable video name candidate: the media file name
// up to its first '_' or '$'.
func (t *dashTables) hint(ref string) {
	if t.nameHint != "" {
		return
	}
	full := classify.FullName(ref)
	if i := strings.IndexAny(full, "_$"); i >= 0 {
		full = full[:i]
	} else if ext := classify.Extension(full); ext != "" {
		full = strings.TrimSuffix(full, ext)
	}
	t.nameHint = full
}

func expandTimeline(entries []timelineEntry) []uint64 {
	var starts []uint64
	var next uint64
	for _, s := range entries {
		if s.T != nil {
			next = *s.T
		}
		repeat := s.R
		if repeat < 0 {
			repeat = 0
		}
		for i := 0; i <= repeat; i++ {
			starts = append(starts, next)
			next += s.D
		}
	}
	return starts
}

func rangeStart(r string) (int64, bool) {
	if r == "" {
		return 0, false
	}
	s, _, _ := strings.Cut(r, "-")
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n, err == nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func (m *DASH) deriveName() string {
	if m.tables.nameHint != "" {
		return m.tables.nameHint
	}
	if m.exchange != nil {
		obj := m.exchange.ObjectName()
		if m.tables.smooth {
			if i := strings.Index(obj, ".ism"); i >= 0 {
				return classify.FullName(obj[:i])
			}
		}
		if name := classify.ExtractName(obj); name != "" {
			return name
		}
	}
	return UnknownName
}

// ParseSegment resolves a segment number from the identity, the segment
// list, a byte range or the media template, in that order.
func (m *DASH) ParseSegment(name string, id *media.Identity) int {
	if id != nil && id.Resolved() {
		return id.Segment
	}
	if n, ok := m.tables.segments[name]; ok {
		return n
	}
	if id != nil && id.ByteRange != nil {
		if n, ok := m.tables.ranges[id.ByteRange.Start]; ok {
			return n
		}
	}
	for _, re := range m.tables.templates {
		match := re.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		if i := re.SubexpIndex("number"); i > 0 && match[i] != "" {
			if n, err := strconv.Atoi(match[i]); err == nil {
				return n
			}
		}
		if i := re.SubexpIndex("time"); i > 0 && match[i] != "" {
			if ts, err := strconv.ParseUint(match[i], 10, 64); err == nil {
				if n, ok := m.SegmentAt(ts); ok {
					return n
				}
			}
		}
	}
	return media.SegmentUnresolved
}

// SegmentAt maps a decode time onto the timeline or the fixed segment duration.
func (m *DASH) SegmentAt(decodeTime uint64) (int, bool) {
	t := m.tables
	if len(t.timeline) > 0 {
		i := sort.Search(len(t.timeline), func(i int) bool { return t.timeline[i] > decodeTime })
		if i == 0 {
			return 0, false
		}
		return t.startNumber + i - 1, true
	}
	if t.segDuration > 0 {
		return t.startNumber + int(decodeTime/t.segDuration), true
	}
	return 0, false
}

// Bitrate looks up a representation id, media file name or quality level.
func (m *DASH) Bitrate(quality string) (float64, bool) {
	bw, ok := m.tables.bandwidth[quality]
	return bw, ok
}

// Duration is the template segment duration, falling back to the MPD's
// maxSegmentDuration.
func (m *DASH) Duration() float64 {
	if m.tables.segDuration > 0 && m.tables.timescale > 0 {
		return float64(m.tables.segDuration) / m.tables.timescale
	}
	return m.tables.maxDuration
}

// Timescale returns the declared timescale or DefaultTimescale.
func (m *DASH) Timescale() float64 {
	if m.tables.timescale <= 0 {
		return DefaultTimescale
	}
	return m.tables.timescale
}
