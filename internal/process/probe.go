package process

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Metadata is what a probe reports about one media file. Zero values mean
// the field was absent or unreadable.
type Metadata struct {
	Bitrate  float64 // bits per second
	Duration float64 // seconds
	Start    float64 // seconds
}

const (
	bitrateLabel  = "bitrate: "
	durationLabel = "Duration: "
	startLabel    = ", start:"
)

// labeledValue returns the text between label and the next delim, or the
// rest of text when delim does not follow.
func labeledValue(text, label, delim string) (string, bool) {
	i := strings.Index(text, label)
	if i < 0 {
		return "", false
	}
	rest := text[i+len(label):]
	if j := strings.Index(rest, delim); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest), true
}

// ParseBitrate converts "<number> <unit>" into bits per second. "kb/s" is
// scaled by 1024 and "mb/s" by 1048576; anything unparseable yields 0.
func ParseBitrate(value string) float64 {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	if len(fields) > 1 {
		switch strings.ToLower(fields[1]) {
		case "kb/s":
			v *= 1024
		case "mb/s":
			v *= 1024 * 1024
		}
	}
	return v
}

// ParseDuration converts "hh:mm:ss.ss" or a plain number of seconds.
func ParseDuration(value string) (float64, error) {
	value = strings.TrimSpace(value)
	parts := strings.Split(value, ":")
	if len(parts) == 3 {
		h, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, fmt.Errorf("duration hours %q: %w", value, err)
		}
		m, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, fmt.Errorf("duration minutes %q: %w", value, err)
		}
		s, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return 0, fmt.Errorf("duration seconds %q: %w", value, err)
		}
		return float64(h)*3600 + float64(m)*60 + s, nil
	}

	d, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("duration %q: %w", value, err)
	}
	return d, nil
}

// ParseStart converts the start offset; unparseable input yields 0.
func ParseStart(value string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseMetadata extracts bitrate, duration and start from ffmpeg's stream
// description. The returned error lists fields that were present but could
// not be parsed; the metadata is usable either way.
func ParseMetadata(out string) (Metadata, error) {
	var md Metadata
	var errs []error

	if v, ok := labeledValue(out, bitrateLabel, "\n"); ok {
		md.Bitrate = ParseBitrate(v)
	}
	if v, ok := labeledValue(out, durationLabel, ","); ok {
		d, err := ParseDuration(v)
		if err != nil {
			errs = append(errs, err)
		}
		md.Duration = d
	}
	if v, ok := labeledValue(out, startLabel, ","); ok {
		md.Start = ParseStart(v)
	}

	return md, errors.Join(errs...)
}
