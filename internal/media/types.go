// Package media holds the value types shared by the classifier, the rule
// engine, the manifest variants and the extraction pipeline.
package media

import (
	"fmt"
	"regexp"
	"strings"
)

// VideoType identifies the streaming protocol a manifest or segment belongs to.
type VideoType int

const (
	VideoTypeUnknown VideoType = iota // Unlabeled stream, no manifest seen
	VideoTypeDASH                     // MPEG-DASH (.mpd) or Smooth Streaming
	VideoTypeHLS                      // HTTP Live Streaming (.m3u8)
)

// String returns a human-readable name for the video type.
func (t VideoType) String() string {
	switch t {
	case VideoTypeDASH:
		return "DASH"
	case VideoTypeHLS:
		return "HLS"
	default:
		return "UNKNOWN"
	}
}

// ParseVideoType converts a configuration string to a VideoType.
// Unrecognized values map to VideoTypeUnknown.
func ParseVideoType(s string) VideoType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DASH", "SSM":
		return VideoTypeDASH
	case "HLS":
		return VideoTypeHLS
	default:
		return VideoTypeUnknown
	}
}

// SegmentUnresolved marks a segment number that could not be derived from the
// request and must be inferred from container metadata.
const SegmentUnresolved = -1

// ByteRange is an inclusive byte range of a range-requested segment.
type ByteRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// String formats the range the way it appears in debug file names.
func (r ByteRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Identity is the set of facts derived about one exchange: which video it
// belongs to, the quality rendition, the segment number and the file type.
type Identity struct {
	ID        string
	Quality   string
	Segment   int
	Extension string
	ByteRange *ByteRange
}

// NewIdentity returns an Identity for a named object with an unresolved segment.
func NewIdentity(id, extension string) *Identity {
	return &Identity{
		ID:        id,
		Extension: strings.TrimPrefix(extension, "."),
		Segment:   SegmentUnresolved,
	}
}

// Resolved reports whether the segment number is known.
func (id *Identity) Resolved() bool {
	return id.Segment >= 0
}

// QualityOrUnknown returns the quality label, or "unknown" when none was found.
func (id *Identity) QualityOrUnknown() string {
	if id.Quality == "" {
		return "unknown"
	}
	return id.Quality
}

var reNumeric = regexp.MustCompile(`^[-+]?\d*\.?\d+$`)

// NumericQuality reports whether the quality label is a plain number.
func (id *Identity) NumericQuality() bool {
	return reNumeric.MatchString(id.Quality)
}

func (id *Identity) String() string {
	rng := ""
	if id.ByteRange != nil {
		rng = " range=" + id.ByteRange.String()
	}
	return fmt.Sprintf("id=%s quality=%s segment=%d ext=%s%s", id.ID, id.Quality, id.Segment, id.Extension, rng)
}
