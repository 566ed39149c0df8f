// Package mp4 walks the box headers of a single fragmented-MP4 chunk.
package mp4

import "encoding/binary"

// HeaderSize is the size of a compact box header: 4-byte length + 4-byte type.
const HeaderSize = 8

// Fragment is what ParseFragment recovers from a moof/mdat pair.
type Fragment struct {
	PayloadSize int64  // mdat length minus its header, 0 when absent
	DecodeTime  uint32 // tfdt base media decode time, 0 when absent
}

// reader is a bounds-checked cursor over a byte slice.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) seek(abs int) bool {
	if abs < 0 || abs > len(r.buf) {
		return false
	}
	r.pos = abs
	return true
}

func (r *reader) uint32() (uint32, bool) {
	if r.pos+4 > len(r.buf) {
		return 0, false
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, true
}

// header reads a box header and returns the declared length, the type and the
// offset at which the box started.
func (r *reader) header() (size uint32, typ string, start int, ok bool) {
	start = r.pos
	if size, ok = r.uint32(); !ok {
		return 0, "", start, false
	}
	if r.pos+4 > len(r.buf) {
		return 0, "", start, false
	}
	typ = string(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return size, typ, start, true
}

// skipBox moves past a box whose header started at start.
func (r *reader) skipBox(start int, size uint32) bool {
	if size < HeaderSize {
		return false
	}
	return r.seek(start + int(size))
}

// ParseFragment returns the mdat payload size and the tfdt decode time of a
// buffer holding one moof box followed by its mdat. A buffer that does not
// start with moof yields a zero Fragment. A missing or truncated sub-box stops
// the walk and leaves the unresolved field at zero.
func ParseFragment(buf []byte) Fragment {
	var f Fragment
	r := &reader{buf: buf}

	moofSize, typ, _, ok := r.header()
	if !ok || typ != "moof" {
		return f
	}

	f.DecodeTime = decodeTime(r)

	// mdat follows the moof at its declared length.
	if !r.seek(int(moofSize)) {
		return f
	}
	mdatSize, typ, _, ok := r.header()
	if ok && typ == "mdat" && mdatSize >= HeaderSize {
		f.PayloadSize = int64(mdatSize) - HeaderSize
	}
	return f
}

func decodeTime(r *reader) uint32 {
	size, typ, start, ok := r.header()
	if !ok || typ != "mfhd" || !r.skipBox(start, size) {
		return 0
	}

	if _, typ, _, ok = r.header(); !ok || typ != "traf" {
		return 0
	}

	size, typ, start, ok = r.header()
	if !ok {
		return 0
	}
	if typ == "tfhd" {
		if !r.skipBox(start, size) {
			return 0
		}
		if _, typ, _, ok = r.header(); !ok {
			return 0
		}
	}
	if typ != "tfdt" {
		return 0
	}

	// version/flags, then the high word
	if _, ok := r.uint32(); !ok {
		return 0
	}
	if _, ok := r.uint32(); !ok {
		return 0
	}
	v, _ := r.uint32()
	return v
}
