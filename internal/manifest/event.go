package manifest

import (
	"fmt"
	"slices"
	"strings"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/media"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/trace"
)

// Event is one resolved media download. Only Duration and Thumbnail change
// after construction.
type Event struct {
	Type       media.VideoType
	Segment    int
	Quality    string
	Bitrate    float64
	Duration   float64
	StartTime  float64
	Size       int64
	Thumbnail  []byte
	ByteRanges []media.ByteRange
	Timestamp  float64 // Response time relative to trace start
	Exchange   *trace.Exchange
}

func (e *Event) String() string {
	return fmt.Sprintf("%s seg=%d q=%s bitrate=%.0f duration=%.3f start=%.3f size=%d",
		e.Type, e.Segment, e.Quality, e.Bitrate, e.Duration, e.StartTime, e.Size)
}

// EventKey builds the composite index key for an event. Keys of one segment
// sort together, ordered by download time and then quality.
func EventKey(segment int, timestamp float64, quality string) string {
	return fmt.Sprintf("%010d:%014.6f:%s", segment, timestamp, quality)
}

// SegmentMarker returns a key that sorts after every event of segment and
// before every event of segment+1. Markers are never stored.
func SegmentMarker(segment int) string {
	return fmt.Sprintf("%010d:~", segment)
}

// Entry is a key/event pair of an EventIndex.
type Entry struct {
	Key   string
	Event *Event
}

// EventIndex is an ordered map from composite key to Event.
type EventIndex struct {
	entries []Entry
}

// NewEventIndex returns an empty index.
func NewEventIndex() *EventIndex {
	return &EventIndex{}
}

func (x *EventIndex) search(key string) (int, bool) {
	return slices.BinarySearchFunc(x.entries, key, func(e Entry, k string) int {
		return strings.Compare(e.Key, k)
	})
}

// Put stores ev under key, replacing any event already there.
func (x *EventIndex) Put(key string, ev *Event) {
	i, found := x.search(key)
	if found {
		x.entries[i].Event = ev
		return
	}
	x.entries = slices.Insert(x.entries, i, Entry{Key: key, Event: ev})
}

// Get returns the event stored under key.
func (x *EventIndex) Get(key string) (*Event, bool) {
	i, found := x.search(key)
	if !found {
		return nil, false
	}
	return x.entries[i].Event, true
}

// Higher returns the first entry with a key strictly greater than key.
func (x *EventIndex) Higher(key string) (Entry, bool) {
	i, found := x.search(key)
	if found {
		i++
	}
	if i >= len(x.entries) {
		return Entry{}, false
	}
	return x.entries[i], true
}

// Range returns the events with from <= key < to, in key order.
func (x *EventIndex) Range(from, to string) []*Event {
	lo, _ := x.search(from)
	hi, _ := x.search(to)
	if hi <= lo {
		return nil
	}
	out := make([]*Event, 0, hi-lo)
	for _, e := range x.entries[lo:hi] {
		out = append(out, e.Event)
	}
	return out
}

// Last returns the entry with the greatest key.
func (x *EventIndex) Last() (Entry, bool) {
	if len(x.entries) == 0 {
		return Entry{}, false
	}
	return x.entries[len(x.entries)-1], true
}

// All returns every event in key order.
func (x *EventIndex) All() []*Event {
	out := make([]*Event, len(x.entries))
	for i, e := range x.entries {
		out[i] = e.Event
	}
	return out
}

// Entries returns a copy of the key/event pairs in key order.
func (x *EventIndex) Entries() []Entry {
	return slices.Clone(x.entries)
}

// Len returns the number of stored events.
func (x *EventIndex) Len() int {
	return len(x.entries)
}
