package manifest

// Reconcile fills in missing segment durations from the start time of the
// following segment. When segments are missing between two known ones the
// interval is split evenly across the gap. Durations already positive are
// kept. The highest segment inherits the last computed duration, if any.
//
// It returns the number of events whose duration was set.
func Reconcile(m Manifest) int {
	events := m.Events()
	last, ok := events.Last()
	if !ok {
		return 0
	}
	lastSeg := last.Event.Segment

	updated := 0
	fill := func(evs []*Event, d float64) {
		for _, ev := range evs {
			if ev.Duration <= 0 {
				ev.Duration = d
				updated++
			}
		}
	}

	key := SegmentMarker(0)
	var duration float64
	for seg := 1; seg <= lastSeg; seg++ {
		next := SegmentMarker(seg)
		val, ok := events.Higher(key)
		if !ok {
			break
		}
		if val.Event.Segment > seg {
			// Nothing recorded for seg; jump to the segment before the next one seen.
			seg = val.Event.Segment - 1
			key = SegmentMarker(seg)
			continue
		}
		valn, ok := events.Higher(next)
		if !ok {
			break
		}

		duration = valn.Event.StartTime - val.Event.StartTime
		if delta := valn.Event.Segment - val.Event.Segment; delta > 1 {
			duration /= float64(delta)
		}
		fill(events.Range(key, next), duration)
		key = next
	}

	// Trailing segment has no successor to bound it.
	if val, ok := events.Higher(key); ok && duration > 0 {
		fill(events.Range(key, SegmentMarker(val.Event.Segment)), duration)
	}
	return updated
}
