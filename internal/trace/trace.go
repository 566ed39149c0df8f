// Package trace models a captured network trace as sessions of HTTP
// request/response exchanges, and builds the chronological request timeline
// consumed by the video analysis.
package trace

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// MethodGet is the only request method considered for video analysis.
const MethodGet = "GET"

var (
	// ErrNoContent is returned when an exchange has no retrievable body.
	ErrNoContent = errors.New("no content captured for exchange")

	// ErrNoResponse is returned when an exchange was never answered.
	ErrNoResponse = errors.New("exchange has no response")
)

// Packet is a single captured packet belonging to a session.
type Packet struct {
	Seconds      int64   // Wall clock seconds
	Microseconds int64   // Wall clock microseconds within the second
	Timestamp    float64 // Seconds relative to trace start
	Length       int

	next *Packet
}

// Next returns the following packet in the same session, or nil for the last one.
func (p *Packet) Next() *Packet {
	return p.next
}

// Response is the answer to an Exchange's request.
type Response struct {
	StatusCode  int
	Header      http.Header
	Timestamp   float64
	ContentType string
	FirstPacket *Packet
}

// Exchange is a GET (or other) request paired with its response.
// Exchanges are immutable once loaded.
type Exchange struct {
	ID        int
	Method    string
	URL       *url.URL
	Header    http.Header
	Timestamp float64 // Seconds relative to trace start; ordering key
	Response  *Response
	Session   *Session

	FirstPacket *Packet
}

// ObjectName returns the URI path without query parameters.
func (e *Exchange) ObjectName() string {
	if e.URL == nil {
		return ""
	}
	return e.URL.Path
}

// URI returns the full request URI as a string.
func (e *Exchange) URI() string {
	if e.URL == nil {
		return ""
	}
	return e.URL.String()
}

// RequestHeaders renders the request headers as "Key: value" lines.
func (e *Exchange) RequestHeaders() string {
	return formatHeader(e.Header)
}

// ResponseHeaders renders the response headers as "Key: value" lines.
func (e *Exchange) ResponseHeaders() string {
	if e.Response == nil {
		return ""
	}
	return formatHeader(e.Response.Header)
}

func (e *Exchange) String() string {
	return fmt.Sprintf("%s %s @%.6f", e.Method, e.URI(), e.Timestamp)
}

func formatHeader(h http.Header) string {
	if len(h) == 0 {
		return ""
	}
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range h[k] {
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("\r\n")
		}
	}
	return b.String()
}

// Session is a transport session holding exchanges and raw packets.
type Session struct {
	ID         string
	RemoteHost string
	StartTime  float64

	Exchanges []*Exchange
	Packets   []*Packet
}

// ContentSource retrieves response payloads.
type ContentSource interface {
	Content(ex *Exchange) ([]byte, error)
}

// Trace is a fully captured trace ready for analysis.
type Trace struct {
	Dir      string
	Sessions []*Session
	Source   ContentSource
}

// MemorySource is a ContentSource backed by an in-memory map.
type MemorySource map[*Exchange][]byte

// Content implements ContentSource.
func (m MemorySource) Content(ex *Exchange) ([]byte, error) {
	if ex.Response == nil {
		return nil, ErrNoResponse
	}
	data, ok := m[ex]
	if !ok {
		return nil, ErrNoContent
	}
	return data, nil
}
