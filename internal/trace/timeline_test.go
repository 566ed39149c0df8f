package trace

import (
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newExchange(t *testing.T, method, rawURL string, ts float64, answered bool) *Exchange {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse %q: %v", rawURL, err)
	}
	ex := &Exchange{Method: method, URL: u, Timestamp: ts}
	if answered {
		ex.Response = &Response{StatusCode: 200, Timestamp: ts + 0.1}
	}
	return ex
}

func TestBuildTimeline_Eligibility(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		url      string
		answered bool
		want     bool
	}{
		{"get_with_extension", "GET", "http://cdn/v/seg_1.m4s", true, true},
		{"post_ignored", "POST", "http://cdn/v/seg_1.m4s", true, false},
		{"no_dot_in_path", "GET", "http://cdn/v/segment", true, false},
		{"dot_only_in_query", "GET", "http://cdn/v/segment?f=a.ts", true, false},
		{"unanswered", "GET", "http://cdn/v/seg_1.ts", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := newExchange(t, tt.method, tt.url, 1, tt.answered)
			m := BuildTimeline([]*Session{{Exchanges: []*Exchange{ex}}})
			if got := m.Contains(ex); got != tt.want {
				t.Errorf("Contains() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildTimeline_OrderAcrossSessions(t *testing.T) {
	a1 := newExchange(t, "GET", "http://a/1.ts", 3.0, true)
	a2 := newExchange(t, "GET", "http://a/2.ts", 5.0, true)
	b1 := newExchange(t, "GET", "http://b/1.mpd", 1.0, true)
	b2 := newExchange(t, "GET", "http://b/2.mp4", 3.0, true)

	sessions := []*Session{
		{ID: "a", Exchanges: []*Exchange{a1, a2}},
		{ID: "b", Exchanges: []*Exchange{b1, b2}},
	}

	m := BuildTimeline(sessions)
	got := m.Exchanges()
	want := []*Exchange{b1, a1, b2, a2}

	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d = %s, want %s", i, got[i], want[i])
		}
	}

	if a1.Session != sessions[0] || b2.Session != sessions[1] {
		t.Error("exchanges not linked back to their sessions")
	}
}

func TestBuildTimeline_Idempotent(t *testing.T) {
	sessions := []*Session{
		{Exchanges: []*Exchange{
			newExchange(t, "GET", "http://a/1.ts", 2.0, true),
			newExchange(t, "GET", "http://a/2.ts", 2.0, true),
		}},
		{Exchanges: []*Exchange{
			newExchange(t, "GET", "http://b/m.m3u8", 0.5, true),
		}},
	}

	first := BuildTimeline(sessions)
	second := BuildTimeline(sessions)

	if diff := cmp.Diff(first.Timestamps(), second.Timestamps()); diff != "" {
		t.Errorf("timestamps differ (-first +second):\n%s", diff)
	}
	f, s := first.Exchanges(), second.Exchanges()
	for i := range f {
		if f[i] != s[i] {
			t.Errorf("position %d differs between runs", i)
		}
	}
}

func TestBuildTimeline_LinksPackets(t *testing.T) {
	p1, p2, p3 := &Packet{Timestamp: 0}, &Packet{Timestamp: 1}, &Packet{Timestamp: 2}
	q1 := &Packet{Timestamp: 0.5}
	sessions := []*Session{
		{Packets: []*Packet{p1, p2, p3}},
		{Packets: []*Packet{q1}},
	}

	BuildTimeline(sessions)

	if p1.Next() != p2 || p2.Next() != p3 {
		t.Error("packets not linked forward")
	}
	if p3.Next() != nil {
		t.Error("last packet of a session must not link onward")
	}
	if q1.Next() != nil {
		t.Error("packets must not link across sessions")
	}
}

func TestRequestMap_StableTies(t *testing.T) {
	m := NewRequestMap()
	first := newExchange(t, "GET", "http://a/1.ts", 1.0, true)
	second := newExchange(t, "GET", "http://a/2.ts", 1.0, true)
	earlier := newExchange(t, "GET", "http://a/0.ts", 0.5, true)

	m.Add(first)
	m.Add(second)
	m.Add(earlier)
	m.Add(first) // duplicate

	got := m.Exchanges()
	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", m.Len())
	}
	if got[0] != earlier || got[1] != first || got[2] != second {
		t.Errorf("unexpected order: %v", got)
	}
}
