package trace

import (
	"slices"
	"strings"
)

// RequestMap is an ordered mapping from timestamp to Exchange.
// Entries are kept in ascending timestamp order; exchanges sharing a
// timestamp keep their insertion order.
type RequestMap struct {
	entries []*Exchange
	index   map[*Exchange]struct{}
}

// NewRequestMap returns an empty RequestMap.
func NewRequestMap() *RequestMap {
	return &RequestMap{index: make(map[*Exchange]struct{})}
}

// Add inserts an exchange. Adding the same exchange twice is a no-op.
func (m *RequestMap) Add(ex *Exchange) {
	if _, ok := m.index[ex]; ok {
		return
	}
	m.index[ex] = struct{}{}

	// Insert after every entry with timestamp <= ex.Timestamp to keep ties stable.
	i, _ := slices.BinarySearchFunc(m.entries, ex.Timestamp, func(e *Exchange, ts float64) int {
		if e.Timestamp <= ts {
			return -1
		}
		return 1
	})
	m.entries = slices.Insert(m.entries, i, ex)
}

// Contains reports whether the exchange is present.
func (m *RequestMap) Contains(ex *Exchange) bool {
	_, ok := m.index[ex]
	return ok
}

// Len returns the number of exchanges.
func (m *RequestMap) Len() int {
	return len(m.entries)
}

// Exchanges returns the exchanges in ascending timestamp order.
func (m *RequestMap) Exchanges() []*Exchange {
	return slices.Clone(m.entries)
}

// Timestamps returns the ordered keys.
func (m *RequestMap) Timestamps() []float64 {
	ts := make([]float64, len(m.entries))
	for i, e := range m.entries {
		ts[i] = e.Timestamp
	}
	return ts
}

// BuildTimeline collects every eligible exchange across all sessions, ordered
// by timestamp. An exchange is eligible when it is a GET, its object name
// contains a '.', and its response has been paired.
//
// As a side effect the packets of each session are linked forward, the last
// packet of a session linking nowhere. Calling BuildTimeline again on the same
// sessions yields the same result.
func BuildTimeline(sessions []*Session) *RequestMap {
	m := NewRequestMap()
	for _, session := range sessions {
		for _, ex := range session.Exchanges {
			if !eligible(ex) {
				continue
			}
			ex.Session = session
			m.Add(ex)
		}

		for i, p := range session.Packets {
			if i+1 < len(session.Packets) {
				p.next = session.Packets[i+1]
			} else {
				p.next = nil
			}
		}
	}
	return m
}

func eligible(ex *Exchange) bool {
	return ex.Method == MethodGet &&
		ex.Response != nil &&
		strings.Contains(ex.ObjectName(), ".")
}
