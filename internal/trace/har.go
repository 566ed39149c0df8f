package trace

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// HARExtension is the file extension of HTTP Archive captures.
const HARExtension = ".har"

// harFile mirrors the subset of the HTTP Archive 1.2 format we consume.
type harFile struct {
	Log struct {
		Entries []harEntry `json:"entries"`
	} `json:"log"`
}

type harEntry struct {
	StartedDateTime time.Time   `json:"startedDateTime"`
	Time            float64     `json:"time"` // Total elapsed milliseconds
	Request         harRequest  `json:"request"`
	Response        harResponse `json:"response"`
	ServerIPAddress string      `json:"serverIPAddress"`
	Connection      string      `json:"connection"`
}

type harRequest struct {
	Method  string      `json:"method"`
	URL     string      `json:"url"`
	Headers []harHeader `json:"headers"`
}

type harResponse struct {
	Status  int         `json:"status"`
	Headers []harHeader `json:"headers"`
	Content harContent  `json:"content"`
}

type harContent struct {
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
	Encoding string `json:"encoding"`
}

type harHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FindHAR returns the first HAR capture inside dir.
func FindHAR(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+HARExtension))
	if err != nil {
		return "", fmt.Errorf("search %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no %s capture in %s", HARExtension, dir)
	}
	sort.Strings(matches)
	return matches[0], nil
}

// LoadDir loads the HAR capture found in a trace directory.
func LoadDir(dir string) (*Trace, error) {
	path, err := FindHAR(dir)
	if err != nil {
		return nil, err
	}
	t, err := LoadHAR(path)
	if err != nil {
		return nil, err
	}
	t.Dir = dir
	return t, nil
}

// LoadHAR decodes an HTTP Archive file into sessions. Entries sharing a
// connection id form one session; entries without one are grouped by server
// address and host. Each request and each response contributes one packet.
func LoadHAR(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	var har harFile
	if err := json.NewDecoder(f).Decode(&har); err != nil {
		return nil, fmt.Errorf("decode capture %s: %w", path, err)
	}

	t := buildFromHAR(har.Log.Entries)
	t.Dir = filepath.Dir(path)
	return t, nil
}

// buildFromHAR never fails as a whole: an entry with an unparseable URL is
// skipped and an undecodable body leaves its exchange without content.
func buildFromHAR(entries []harEntry) *Trace {
	source := MemorySource{}
	t := &Trace{Source: source}
	if len(entries) == 0 {
		return t
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartedDateTime.Before(entries[j].StartedDateTime)
	})
	origin := entries[0].StartedDateTime

	sessions := make(map[string]*Session)
	var order []string

	for i, e := range entries {
		u, err := url.Parse(e.Request.URL)
		if err != nil {
			slog.Warn("har_entry_skipped", "entry", i, "url", e.Request.URL, "error", err)
			continue
		}

		key := sessionKey(e, u)
		s, ok := sessions[key]
		if !ok {
			s = &Session{
				ID:         key,
				RemoteHost: u.Host,
				StartTime:  relative(origin, e.StartedDateTime),
			}
			sessions[key] = s
			order = append(order, key)
		}

		reqAt := e.StartedDateTime
		respAt := reqAt.Add(time.Duration(e.Time * float64(time.Millisecond)))

		reqPacket := newPacket(origin, reqAt, 0)
		s.Packets = append(s.Packets, reqPacket)

		ex := &Exchange{
			ID:          i,
			Method:      strings.ToUpper(e.Request.Method),
			URL:         u,
			Header:      toHeader(e.Request.Headers),
			Timestamp:   reqPacket.Timestamp,
			Session:     s,
			FirstPacket: reqPacket,
		}

		// HAR marks unanswered requests with status 0.
		if e.Response.Status > 0 {
			// An undecodable body leaves the exchange without content.
			body, err := decodeBody(e.Response.Content)
			if err != nil {
				slog.Warn("har_body_undecodable", "entry", i, "url", e.Request.URL, "error", err)
			}
			respPacket := newPacket(origin, respAt, len(body))
			s.Packets = append(s.Packets, respPacket)

			ex.Response = &Response{
				StatusCode:  e.Response.Status,
				Header:      toHeader(e.Response.Headers),
				Timestamp:   respPacket.Timestamp,
				ContentType: e.Response.Content.MimeType,
				FirstPacket: respPacket,
			}
			if len(body) > 0 {
				source[ex] = body
			}
		}
		s.Exchanges = append(s.Exchanges, ex)
	}

	for _, key := range order {
		s := sessions[key]
		sort.SliceStable(s.Packets, func(i, j int) bool {
			return s.Packets[i].Timestamp < s.Packets[j].Timestamp
		})
		t.Sessions = append(t.Sessions, s)
	}
	return t
}

func sessionKey(e harEntry, u *url.URL) string {
	if e.Connection != "" {
		return e.Connection
	}
	return e.ServerIPAddress + "/" + u.Host
}

func relative(origin, at time.Time) float64 {
	return at.Sub(origin).Seconds()
}

func newPacket(origin, at time.Time, length int) *Packet {
	return &Packet{
		Seconds:      at.Unix(),
		Microseconds: int64(at.Nanosecond() / 1000),
		Timestamp:    relative(origin, at),
		Length:       length,
	}
}

func toHeader(hs []harHeader) http.Header {
	h := make(http.Header, len(hs))
	for _, kv := range hs {
		h.Add(kv.Name, kv.Value)
	}
	return h
}

func decodeBody(c harContent) ([]byte, error) {
	if c.Text == "" {
		return nil, nil
	}
	if c.Encoding == "base64" {
		b, err := base64.StdEncoding.DecodeString(c.Text)
		if err != nil {
			return nil, fmt.Errorf("decode base64 body: %w", err)
		}
		return b, nil
	}
	return []byte(c.Text), nil
}
