// Package mpegts reads presentation timestamps from MPEG transport stream
// segments.
package mpegts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astits"
)

// ClockRate is the PTS clock frequency in Hz.
const ClockRate = 90000

// ErrNoPTS is returned when no PES packet in the stream carries a PTS.
var ErrNoPTS = errors.New("mpegts: no presentation timestamp")

func isVideoStream(id uint8) bool {
	return id >= 0xE0 && id <= 0xEF
}

// FirstPTS returns the first video PTS in r, in 90 kHz ticks. When the
// stream has no video PES packets the first timestamped PES of any kind is
// used instead.
func FirstPTS(ctx context.Context, r io.Reader) (int64, error) {
	dmx := astits.NewDemuxer(ctx, r)

	var fallback *int64
	for {
		d, err := dmx.NextData()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return 0, fmt.Errorf("demux: %w", err)
		}
		if d.PES == nil || d.PES.Header == nil || d.PES.Header.OptionalHeader == nil {
			continue
		}
		pts := d.PES.Header.OptionalHeader.PTS
		if pts == nil {
			continue
		}
		if isVideoStream(d.PES.Header.StreamID) {
			return pts.Base, nil
		}
		if fallback == nil {
			base := pts.Base
			fallback = &base
		}
	}

	if fallback != nil {
		return *fallback, nil
	}
	return 0, ErrNoPTS
}

// StartSeconds returns the first PTS of a segment payload in seconds.
func StartSeconds(ctx context.Context, payload []byte) (float64, error) {
	if len(payload) == 0 {
		return 0, ErrNoPTS
	}
	pts, err := FirstPTS(ctx, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	return float64(pts) / ClockRate, nil
}
