package analysis

import (
	"path/filepath"
	"strings"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/classify"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/manifest"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/media"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/trace"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/usage"
)

// saveDump writes a manifest copy into the segment folder. Failures are
// logged only.
func (r *run) saveDump(name string, content []byte) {
	path := filepath.Join(r.segmentsDir, name)
	if err := r.store.Save(path, content); err != nil {
		r.logger.Debug("manifest_dump_failed", "path", path, "error", err)
	}
}

// extractDASHManifest parses a DASH or smooth-streaming manifest and returns
// the manifest that should become current. A manifest whose video name is
// already registered resolves to the registered instance.
func (r *run) extractDASHManifest(ex *trace.Exchange) manifest.Manifest {
	kind := classify.KindDASHManifest
	content, err := r.content(ex)
	if err != nil {
		r.fail(ex, kind, "content", err)
		return r.current
	}
	r.saveDump(dashDumpName(ex, r.prefs.AbsoluteTime), content)

	m, err := manifest.NewDASH(ex, content)
	if err != nil {
		r.logger.Warn("dash_manifest_parse_failed", "uri", ex.URI(), "error", err)
		r.fail(ex, kind, "parse", err)
		return r.current
	}
	m.SetDelay(r.prefs.StartupDelay)

	got, added := r.report.Registry().AddUnique(ex.Timestamp, m)
	if added {
		r.observer.ManifestRegistered(got.Type())
		r.logger.Debug("manifest_registered", "type", got.Type().String(), "video", got.VideoName())
	}
	r.report.AddRequest(ex)
	return got
}

// extractHLSManifest handles a master or media playlist. Repeated content is
// ignored, playlists of a known video update it, anything else registers a
// new HLS manifest.
func (r *run) extractHLSManifest(ex *trace.Exchange) manifest.Manifest {
	kind := classify.KindHLSManifest
	content, err := r.content(ex)
	if err != nil {
		r.fail(ex, kind, "content", err)
		return r.current
	}

	name := hlsVideoName(ex.ObjectName())
	r.saveDump(hlsDumpName(ex, name, r.prefs.AbsoluteTime), content)

	if r.current != nil && r.current.IsDuplicate(content) {
		r.report.AddRequest(ex)
		return r.current
	}

	if m := r.report.Registry().FindHLS(name); m != nil {
		if err := m.Update(content); err != nil {
			r.logger.Warn("hls_manifest_update_failed", "uri", ex.URI(), "error", err)
			r.fail(ex, kind, "parse", err)
			return r.current
		}
		r.report.AddRequest(ex)
		return m
	}

	m, err := manifest.NewHLS(ex, name, content)
	if err != nil {
		r.logger.Warn("hls_manifest_parse_failed", "uri", ex.URI(), "error", err)
		r.fail(ex, kind, "parse", err)
		return r.current
	}
	r.register(ex.Timestamp, m)
	r.report.AddRequest(ex)
	return m
}

// preseed registers manifests saved in the downloads folder before the
// trace is read. Each mpd becomes its own entry. The first m3u8 creates an
// external HLS manifest and later ones update it.
func (r *run) preseed() {
	files, err := r.store.List(r.downloadsDir)
	if err != nil {
		r.logger.Warn("downloads_list_failed", "dir", r.downloadsDir, "error", err)
		return
	}

	registry := r.report.Registry()
	var key usage.Key
	var external manifest.Manifest

	for _, file := range files {
		ext := strings.ToLower(filepath.Ext(file))
		if ext != ".mpd" && ext != ".m3u8" {
			r.logger.Debug("downloads_file_skipped", "file", file)
			continue
		}
		content, err := r.store.Read(filepath.Join(r.downloadsDir, file))
		if err != nil {
			r.logger.Warn("downloads_read_failed", "file", file, "error", err)
			continue
		}

		switch {
		case ext == ".mpd":
			m, err := manifest.NewDASH(nil, content)
			if err != nil {
				r.logger.Warn("downloads_manifest_invalid", "file", file, "error", err)
				continue
			}
			m.SetDelay(r.prefs.StartupDelay)
			registry.AddAt(key, m)
			key += usage.PreseedStep
			r.observer.ManifestRegistered(media.VideoTypeDASH)
			r.adopt(m)

		case external == nil:
			m, err := manifest.NewHLS(nil, preseedHLSName(file), content)
			if err != nil {
				r.logger.Warn("downloads_manifest_invalid", "file", file, "error", err)
				continue
			}
			m.SetDelay(r.prefs.StartupDelay)
			registry.AddAt(key, m)
			key += usage.PreseedStep
			r.observer.ManifestRegistered(media.VideoTypeHLS)
			if r.current == nil {
				r.adopt(m)
			}
			external = m

		default:
			if err := external.Update(content); err != nil {
				r.logger.Warn("downloads_manifest_invalid", "file", file, "error", err)
			}
		}
	}
}
