// Package rules loads per-URL extraction rules that recover a segment's video
// id, quality, segment number and byte range from its request.
package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/media"
)

// Tag names a capture-group target.
type Tag string

const (
	TagID        Tag = "id"
	TagSegment   Tag = "segment"
	TagQuality   Tag = "quality"
	TagByteStart Tag = "byte_start"
	TagByteEnd   Tag = "byte_end"
	TagExtension Tag = "extension"
	TagSkip      Tag = "skip"
)

func (t Tag) valid() bool {
	switch t {
	case TagID, TagSegment, TagQuality, TagByteStart, TagByteEnd, TagExtension, TagSkip:
		return true
	}
	return false
}

// File is the on-disk rules document.
type File struct {
	Rules []RuleSpec `yaml:"rules"`
}

// RuleSpec is one rule as written in YAML.
type RuleSpec struct {
	Description    string `yaml:"description"`
	Type           string `yaml:"type"`
	URL            string `yaml:"url"`
	Pattern        string `yaml:"pattern"`
	RequestHeader  string `yaml:"request_header,omitempty"`
	ResponseHeader string `yaml:"response_header,omitempty"`
	Tags           []Tag  `yaml:"tags"`
}

// Rule is a compiled RuleSpec.
type Rule struct {
	Description string
	VideoType   media.VideoType
	Tags        []Tag

	selector       *regexp.Regexp
	pattern        *regexp.Regexp
	requestHeader  *regexp.Regexp
	responseHeader *regexp.Regexp
}

// Set is an ordered collection of rules. The zero value matches nothing.
type Set struct {
	rules []*Rule
}

// Load reads and compiles a rules file. Unknown YAML fields are rejected.
func Load(path string) (*Set, error) {
	path = filepath.Clean(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rules %s: %w", path, err)
	}
	return set, nil
}

// Parse compiles a rules document.
func Parse(data []byte) (*Set, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &Set{}, nil
		}
		return nil, fmt.Errorf("strict parse: %w", err)
	}
	return Compile(f.Rules)
}

// Compile builds a Set from specs, reporting every invalid rule.
func Compile(specs []RuleSpec) (*Set, error) {
	set := &Set{}
	var errs []error
	for i, spec := range specs {
		r, err := compile(spec)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %d (%s): %w", i, spec.Description, err))
			continue
		}
		set.rules = append(set.rules, r)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return set, nil
}

func compile(spec RuleSpec) (*Rule, error) {
	if spec.URL == "" {
		return nil, errors.New("url selector is required")
	}
	if spec.Pattern == "" {
		return nil, errors.New("pattern is required")
	}
	for _, tag := range spec.Tags {
		if !tag.valid() {
			return nil, fmt.Errorf("unknown tag %q", tag)
		}
	}

	r := &Rule{
		Description: spec.Description,
		VideoType:   media.ParseVideoType(spec.Type),
		Tags:        spec.Tags,
	}

	var err error
	if r.selector, err = regexp.Compile(spec.URL); err != nil {
		return nil, fmt.Errorf("url: %w", err)
	}
	if r.pattern, err = regexp.Compile(spec.Pattern); err != nil {
		return nil, fmt.Errorf("pattern: %w", err)
	}
	if r.requestHeader, err = compileOptional(spec.RequestHeader); err != nil {
		return nil, fmt.Errorf("request_header: %w", err)
	}
	if r.responseHeader, err = compileOptional(spec.ResponseHeader); err != nil {
		return nil, fmt.Errorf("response_header: %w", err)
	}
	return r, nil
}

func compileOptional(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}
	return regexp.Compile(expr)
}

// Len returns the number of rules.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Find returns the first rule whose URL selector matches uri, or nil.
func (s *Set) Find(uri string) *Rule {
	if s == nil {
		return nil
	}
	for _, r := range s.rules {
		if r.selector.MatchString(uri) {
			return r
		}
	}
	return nil
}

// Match applies the rule's patterns and returns the captured values in tag
// order: URI groups first, then request header groups, then response header
// groups. A pattern that does not match contributes nothing.
func (r *Rule) Match(uri, requestHeaders, responseHeaders string) []string {
	var values []string
	values = appendGroups(values, r.pattern, uri)
	values = appendGroups(values, r.requestHeader, requestHeaders)
	values = appendGroups(values, r.responseHeader, responseHeaders)
	return values
}

func appendGroups(dst []string, re *regexp.Regexp, s string) []string {
	if re == nil {
		return dst
	}
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return dst
	}
	return append(dst, m[1:]...)
}

// Identity maps captured values onto an Identity using the rule's tags.
// It returns nil when no values were captured.
func (r *Rule) Identity(values []string) *media.Identity {
	if len(values) == 0 {
		return nil
	}

	id := &media.Identity{Segment: media.SegmentUnresolved}
	var start, end int64
	var haveStart, haveEnd bool

	for i, tag := range r.Tags {
		if i >= len(values) {
			break
		}
		v := strings.TrimSpace(values[i])
		switch tag {
		case TagID:
			id.ID = v
		case TagQuality:
			id.Quality = v
		case TagExtension:
			id.Extension = strings.TrimPrefix(v, ".")
		case TagSegment:
			if n, err := strconv.Atoi(v); err == nil {
				id.Segment = n
			}
		case TagByteStart:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				start, haveStart = n, true
			}
		case TagByteEnd:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				end, haveEnd = n, true
			}
		}
	}
	if haveStart && haveEnd {
		id.ByteRange = &media.ByteRange{Start: start, End: end}
	}
	return id
}

func (r *Rule) String() string {
	return fmt.Sprintf("%s [%s] %s", r.Description, r.VideoType, r.pattern)
}
