package analysis

import (
	"errors"
	"path/filepath"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/artifacts"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/classify"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/manifest"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/media"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/mp4"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/mpegts"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/process"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/rules"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/trace"
)

// identify derives the identity of a media download, from a matching rule
// when there is one. The returned rule is nil unless it produced the identity.
func (r *run) identify(ex *trace.Exchange, res classify.Result) (*media.Identity, *rules.Rule) {
	obj := ex.ObjectName()
	fallbackID := classify.ExtractName(obj)
	fallbackExt := classify.Extension(res.FullName)

	var id *media.Identity
	rule := r.rules.Find(ex.URI())
	if rule != nil {
		id = rule.Identity(rule.Match(ex.URI(), ex.RequestHeaders(), ex.ResponseHeaders()))
	}
	if id == nil {
		return media.NewIdentity(fallbackID, fallbackExt), nil
	}
	if id.ID == "" {
		id.ID = fallbackID
	}
	if id.Extension == "" {
		id.Extension = media.NewIdentity("", fallbackExt).Extension
	}
	return id, rule
}

// extractMedia turns one media download into a segment event on the
// manifest it belongs to. Every call ends with ex either in the request map
// or in the failed set.
func (r *run) extractMedia(ex *trace.Exchange, res classify.Result) {
	id, rule := r.identify(ex, res)

	m := r.resolve(ex, id)
	if rule != nil && id.ID != m.VideoName() {
		m = r.locate(ex, rule, id)
	}

	quality := id.QualityOrUnknown()
	segment := m.ParseSegment(res.FullName, id)
	isDASH := m.IsType(media.VideoTypeDASH)
	isHLS := m.IsType(media.VideoTypeHLS)

	var bitrate, duration float64
	switch {
	case isDASH:
		bw, ok := m.Bitrate(classify.TruncateFrom(res.FullName, "_"))
		if !ok {
			bw, ok = m.Bitrate(quality)
		}
		if ok {
			bitrate = bw
		}
	case isHLS:
		duration = m.Duration()
		if id.NumericQuality() {
			bw, ok := m.Bitrate(id.Quality)
			if !ok {
				bw, ok = m.Bitrate("HLS" + id.Quality)
			}
			if ok {
				bitrate = bw
			}
		} else {
			r.logger.Debug("hls_quality_not_numeric", "quality", quality, "uri", ex.URI())
		}
	}

	content, err := r.content(ex)
	if err != nil {
		r.fail(ex, res.Kind, "content", err)
		return
	}

	size := int64(len(content))
	var decodeTime uint32
	if isDASH {
		frag := mp4.ParseFragment(content)
		if frag.PayloadSize > 0 {
			size = frag.PayloadSize
		}
		decodeTime = frag.DecodeTime
		if segment < 0 {
			if n, ok := m.SegmentAt(uint64(decodeTime)); ok {
				segment = n
			} else {
				segment = int(decodeTime)
			}
		}
	}
	id.Segment = segment

	var start float64
	haveStart := false
	switch {
	case isDASH && segment > 0:
		start = float64(decodeTime) / m.Timescale()
		haveStart = true
	case isHLS:
		if s, err := mpegts.StartSeconds(r.ctx, content); err == nil {
			start = r.normalizeStart(s)
			haveStart = true
		} else {
			r.logger.Debug("ts_start_unavailable", "uri", ex.URI(), "error", err)
		}
	}

	dumpPath := filepath.Join(r.segmentsDir, debugName(ex, id, segment, r.prefs.AbsoluteTime))
	if err := r.store.Save(dumpPath, content); err != nil {
		r.fail(ex, res.Kind, "save", err)
		return
	}
	r.report.AddRequest(ex)

	var thumb []byte
	if isDASH && segment == 0 {
		m.SetInitData(quality, content)
	} else {
		var meta process.Metadata
		thumb, meta = r.inspect(m, id, quality, segment, content)
		if thumb != nil {
			if meta.Bitrate > 0 {
				bitrate = meta.Bitrate
			}
			if meta.Duration > 0 {
				duration = meta.Duration
			}
			if !haveStart {
				start = meta.Start
			}
		}
	}
	duration -= start

	ev := &manifest.Event{
		Type:      m.Type(),
		Segment:   segment,
		Quality:   quality,
		Bitrate:   bitrate,
		Duration:  duration,
		StartTime: start,
		Size:      size,
		Thumbnail: thumb,
		Timestamp: ex.Response.Timestamp,
		Exchange:  ex,
	}
	if id.ByteRange != nil {
		ev.ByteRanges = []media.ByteRange{*id.ByteRange}
	}
	m.AddEvent(segment, ex.Response.Timestamp, ev)
	r.observer.SegmentExtracted(ev)
}

// normalizeStart makes HLS start times relative to the first non-zero one.
func (r *run) normalizeStart(s float64) float64 {
	if r.time0 == 0 && s > 0 {
		r.time0 = s
	}
	return s - r.time0
}

// inspect writes the segment to a scratch file, prefixed with the init
// segment of its quality when one was captured, extracts a thumbnail and
// probes the file. It returns a nil thumbnail when nothing was extracted.
func (r *run) inspect(m manifest.Manifest, id *media.Identity, quality string, segment int, content []byte) ([]byte, process.Metadata) {
	if !r.prefs.Thumbnails || r.prober == nil {
		return nil, process.Metadata{}
	}

	data := content
	if initSeg, ok := m.InitData(quality); ok {
		data = append(append(make([]byte, 0, len(initSeg)+len(content)), initSeg...), content...)
	} else if m.IsType(media.VideoTypeDASH) {
		return nil, process.Metadata{}
	}

	scratch := filepath.Join(r.segmentsDir, scratchName(segment, id))
	if err := r.store.Save(scratch, data); err != nil {
		r.logger.Debug("scratch_save_failed", "path", scratch, "error", err)
		return nil, process.Metadata{}
	}

	thumb, err := r.prober.Thumbnail(r.ctx, scratch, filepath.Join(r.segmentsDir, artifacts.Thumbnail))
	if err != nil || len(thumb) == 0 {
		r.logger.Debug("thumbnail_failed", "path", scratch, "error", err)
		return nil, process.Metadata{}
	}

	meta, err := r.prober.Probe(r.ctx, scratch)
	if err != nil && !errors.Is(err, process.ErrFileNotFound) {
		r.logger.Debug("probe_failed", "path", scratch, "error", err)
	}
	return thumb, meta
}

// extractImage copies an image download into the image folder.
func (r *run) extractImage(ex *trace.Exchange, res classify.Result) {
	content, err := r.content(ex)
	if err != nil {
		r.fail(ex, res.Kind, "content", err)
		return
	}
	name := res.Name
	if name == "" {
		name = res.FullName
	}
	if err := r.store.Save(filepath.Join(r.imageDir, filepath.Base(name)), content); err != nil {
		r.fail(ex, res.Kind, "save", err)
		return
	}
	r.logger.Debug("image_extracted", "name", name, "bytes", len(content))
}
