// Package manifest models the streaming manifests seen in a trace. Each
// variant (DASH, HLS, Unknown) exposes the same capability interface and owns
// the ordered index of segment events downloaded under it.
package manifest

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/media"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/trace"
)

var (
	// ErrEmptyContent is returned when manifest bytes are empty.
	ErrEmptyContent = errors.New("empty manifest content")

	// ErrNotManifest is returned when the bytes are not a manifest of the
	// expected format.
	ErrNotManifest = errors.New("content is not a recognised manifest")
)

// UnknownName labels manifests whose video name cannot be derived.
const UnknownName = "unknown"

// DefaultTimescale converts a fragment decode time into seconds when the
// manifest does not declare a timescale.
const DefaultTimescale = 120000

// Manifest is the capability set shared by every manifest variant.
type Manifest interface {
	Type() media.VideoType
	IsType(t media.VideoType) bool

	VideoName() string
	SetVideoName(name string)

	// Delay is the startup delay in seconds applied to playback analysis.
	Delay() float64
	SetDelay(seconds float64)

	// ParseSegment resolves the segment number of a media object.
	// It returns media.SegmentUnresolved when the numbering scheme cannot tell.
	ParseSegment(name string, id *media.Identity) int

	// SegmentAt maps a fragment decode time onto a segment number.
	SegmentAt(decodeTime uint64) (int, bool)

	// Bitrate looks up a quality label in the bandwidth table.
	Bitrate(quality string) (float64, bool)

	// Duration is the nominal segment duration in seconds, 0 when unknown.
	Duration() float64

	// Timescale is the number of decode-time ticks per second.
	Timescale() float64

	AddEvent(segment int, timestamp float64, ev *Event)
	Events() *EventIndex

	// IsDuplicate reports whether content was already seen by this manifest.
	IsDuplicate(content []byte) bool

	// Update merges a newer download of the manifest. On error the prior
	// state is retained.
	Update(content []byte) error

	SetInitData(quality string, data []byte)
	InitData(quality string) ([]byte, bool)

	Exchange() *trace.Exchange
}

// base holds the state common to every variant.
type base struct {
	kind     media.VideoType
	name     string
	delay    float64
	events   *EventIndex
	exchange *trace.Exchange
	hashes   map[uint64]struct{}
	init     map[string][]byte
}

func newBase(kind media.VideoType, ex *trace.Exchange) base {
	return base{
		kind:     kind,
		events:   NewEventIndex(),
		exchange: ex,
		hashes:   make(map[uint64]struct{}),
		init:     make(map[string][]byte),
	}
}

func (b *base) Type() media.VideoType          { return b.kind }
func (b *base) IsType(t media.VideoType) bool  { return b.kind == t }
func (b *base) VideoName() string              { return b.name }
func (b *base) SetVideoName(name string)       { b.name = name }
func (b *base) Delay() float64                 { return b.delay }
func (b *base) SetDelay(seconds float64)       { b.delay = seconds }
func (b *base) Events() *EventIndex            { return b.events }
func (b *base) Exchange() *trace.Exchange      { return b.exchange }
func (b *base) SegmentAt(uint64) (int, bool)   { return 0, false }
func (b *base) Bitrate(string) (float64, bool) { return 0, false }
func (b *base) Duration() float64              { return 0 }
func (b *base) Timescale() float64             { return DefaultTimescale }

func (b *base) AddEvent(segment int, timestamp float64, ev *Event) {
	b.events.Put(EventKey(segment, timestamp, ev.Quality), ev)
}

// remember records the hash of a content snapshot for IsDuplicate.
func (b *base) remember(content []byte) {
	b.hashes[xxhash.Sum64(content)] = struct{}{}
}

func (b *base) IsDuplicate(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	_, ok := b.hashes[xxhash.Sum64(content)]
	return ok
}

func (b *base) SetInitData(quality string, data []byte) {
	b.init[quality] = data
}

func (b *base) InitData(quality string) ([]byte, bool) {
	data, ok := b.init[quality]
	return data, ok
}

func (b *base) String() string {
	return fmt.Sprintf("%s manifest %q events=%d", b.kind, b.name, b.events.Len())
}

// Unknown is the passthrough variant used for media seen without a manifest.
type Unknown struct {
	base
}

// NewUnknown returns an Unknown manifest anchored at ex.
func NewUnknown(ex *trace.Exchange, name string) *Unknown {
	m := &Unknown{base: newBase(media.VideoTypeUnknown, ex)}
	m.name = name
	return m
}

// ParseSegment returns the identity's segment unchanged.
func (m *Unknown) ParseSegment(_ string, id *media.Identity) int {
	if id == nil {
		return media.SegmentUnresolved
	}
	return id.Segment
}

// Update only records the snapshot; there is nothing to parse.
func (m *Unknown) Update(content []byte) error {
	if len(content) == 0 {
		return ErrEmptyContent
	}
	m.remember(content)
	return nil
}

var (
	_ Manifest = (*Unknown)(nil)
	_ Manifest = (*DASH)(nil)
	_ Manifest = (*HLS)(nil)
)
