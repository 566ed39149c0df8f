package analysis

import (
	"strings"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/manifest"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/media"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/rules"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/trace"
)

// adopt makes m the current manifest. It is the only writer of r.current;
// a nil m leaves the current manifest unchanged.
func (r *run) adopt(m manifest.Manifest) {
	if m == nil || m == r.current {
		return
	}
	r.current = m
	r.logger.Debug("manifest_current",
		"type", m.Type().String(),
		"video", m.VideoName(),
	)
}

// register adds a manifest created while reading the trace.
func (r *run) register(ts float64, m manifest.Manifest) {
	m.SetDelay(r.prefs.StartupDelay)
	key := r.report.Registry().Add(ts, m)
	r.observer.ManifestRegistered(m.Type())
	r.logger.Debug("manifest_registered",
		"type", m.Type().String(),
		"video", m.VideoName(),
		"key_us", int64(key),
	)
}

// resolve picks the manifest owning a media download. Without a current
// manifest the registry is searched by name and, failing that, a manifest
// is created: DASH when the identity looks like a DASH video stream,
// Unknown otherwise. When the chosen manifest's name is not part of the
// identity, a registry manifest whose name is takes precedence.
func (r *run) resolve(ex *trace.Exchange, id *media.Identity) manifest.Manifest {
	registry := r.report.Registry()

	m := r.current
	if m == nil {
		m = registry.FindVideo(id.ID)
		if m == nil {
			if strings.Contains(id.ID, "_video_") {
				m = manifest.NewDASHPlaceholder(ex, id.ID)
			} else {
				m = manifest.NewUnknown(ex, id.ID)
				id.Segment = 0
				id.Quality = manifest.UnknownName
			}
			r.register(ex.Timestamp, m)
		}
	}

	name := m.VideoName()
	if name != "" && id.ID != "" && !strings.Contains(id.ID, name) {
		if found := registry.FindVideo(id.ID); found != nil {
			m = found
		}
	}
	return m
}

// locate returns the manifest named exactly id.ID, creating and
// registering one of the rule's video type when none exists.
func (r *run) locate(ex *trace.Exchange, rule *rules.Rule, id *media.Identity) manifest.Manifest {
	if m := r.report.Registry().FindName(id.ID); m != nil {
		return m
	}

	var m manifest.Manifest
	switch {
	case rule == nil:
		m = manifest.NewUnknown(ex, id.ID)
	case rule.VideoType == media.VideoTypeDASH:
		m = manifest.NewDASHPlaceholder(ex, id.ID)
	default:
		m = manifest.NewHLSPlaceholder(ex, id.ID)
	}
	r.register(ex.Timestamp, m)
	return m
}
