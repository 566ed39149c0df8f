package manifest

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// mpd mirrors the parts of a Media Presentation Description used for
// segment numbering and bandwidth lookup.
type mpd struct {
	XMLName            xml.Name `xml:"MPD"`
	Type               string   `xml:"type,attr"`
	MaxSegmentDuration string   `xml:"maxSegmentDuration,attr"`
	BaseURL            string   `xml:"BaseURL"`
	Periods            []period `xml:"Period"`
}

type period struct {
	ID      string          `xml:"id,attr"`
	BaseURL string          `xml:"BaseURL"`
	Sets    []adaptationSet `xml:"AdaptationSet"`
}

type adaptationSet struct {
	ContentType     string           `xml:"contentType,attr"`
	MimeType        string           `xml:"mimeType,attr"`
	SegmentTemplate *segmentTemplate `xml:"SegmentTemplate"`
	SegmentList     *segmentList     `xml:"SegmentList"`
	Representations []representation `xml:"Representation"`
}

type representation struct {
	ID              string           `xml:"id,attr"`
	Bandwidth       float64          `xml:"bandwidth,attr"`
	MimeType        string           `xml:"mimeType,attr"`
	BaseURL         string           `xml:"BaseURL"`
	SegmentTemplate *segmentTemplate `xml:"SegmentTemplate"`
	SegmentList     *segmentList     `xml:"SegmentList"`
}

type segmentTemplate struct {
	Timescale      uint64           `xml:"timescale,attr"`
	Duration       uint64           `xml:"duration,attr"`
	StartNumber    *int             `xml:"startNumber,attr"`
	Media          string           `xml:"media,attr"`
	Initialization string           `xml:"initialization,attr"`
	Timeline       *segmentTimeline `xml:"SegmentTimeline"`
}

type segmentTimeline struct {
	S []timelineEntry `xml:"S"`
}

type timelineEntry struct {
	T *uint64 `xml:"t,attr"`
	D uint64  `xml:"d,attr"`
	R int     `xml:"r,attr"`
}

type segmentList struct {
	Timescale   uint64       `xml:"timescale,attr"`
	Duration    uint64       `xml:"duration,attr"`
	StartNumber *int         `xml:"startNumber,attr"`
	URLs        []segmentURL `xml:"SegmentURL"`
}

type segmentURL struct {
	Media      string `xml:"media,attr"`
	MediaRange string `xml:"mediaRange,attr"`
}

// smoothMedia mirrors a Smooth Streaming client manifest.
type smoothMedia struct {
	XMLName   xml.Name       `xml:"SmoothStreamingMedia"`
	TimeScale uint64         `xml:"TimeScale,attr"`
	Duration  uint64         `xml:"Duration,attr"`
	Streams   []smoothStream `xml:"StreamIndex"`
}

type smoothStream struct {
	Type   string        `xml:"Type,attr"`
	Name   string        `xml:"Name,attr"`
	URL    string        `xml:"Url,attr"`
	Levels []smoothLevel `xml:"QualityLevel"`
	Chunks []smoothChunk `xml:"c"`
}

type smoothLevel struct {
	Bitrate string `xml:"Bitrate,attr"`
}

type smoothChunk struct {
	T *uint64 `xml:"t,attr"`
	D uint64  `xml:"d,attr"`
}

const (
	rootMPD    = "MPD"
	rootSmooth = "SmoothStreamingMedia"

	smoothTimescale = 10000000
)

// rootElement returns the local name of the document element.
func rootElement(content []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrNotManifest, err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}

func isVideoSet(contentType, mimeType string) bool {
	s := strings.ToLower(contentType + " " + mimeType)
	return !strings.Contains(s, "audio") && !strings.Contains(s, "text")
}

// templatePattern turns a media template into a regexp capturing $Number$
// (group "number") and $Time$ (group "time").
func templatePattern(media string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	rest := media
	for {
		open := strings.Index(rest, "$")
		if open < 0 {
			b.WriteString(regexp.QuoteMeta(rest))
			break
		}
		closing := strings.Index(rest[open+1:], "$")
		if closing < 0 {
			return nil, fmt.Errorf("unterminated identifier in %q", media)
		}
		b.WriteString(regexp.QuoteMeta(rest[:open]))
		ident := rest[open+1 : open+1+closing]
		if i := strings.Index(ident, "%"); i >= 0 {
			ident = ident[:i]
		}
		switch ident {
		case "":
			b.WriteString(`\$`)
		case "Number":
			b.WriteString(`(?P<number>\d+)`)
		case "Time":
			b.WriteString(`(?P<time>\d+)`)
		default:
			b.WriteString(`[^/]*?`)
		}
		rest = rest[open+1+closing+1:]
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

var reISODuration = regexp.MustCompile(`(\d+\.?\d*)([HMS])`)

// parseISODuration parses the PTnHnMnS subset of ISO 8601 durations.
func parseISODuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if !strings.HasPrefix(s, "PT") {
		return 0, errors.New("unsupported duration " + strconv.Quote(s))
	}
	var total time.Duration
	for _, m := range reISODuration.FindAllStringSubmatch(s[2:], -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, err
		}
		switch m[2] {
		case "H":
			total += time.Duration(v * float64(time.Hour))
		case "M":
			total += time.Duration(v * float64(time.Minute))
		case "S":
			total += time.Duration(v * float64(time.Second))
		}
	}
	return total, nil
}
