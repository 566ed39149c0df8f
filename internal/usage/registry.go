// Package usage holds the result of a video analysis: the manifest registry,
// the processed request map and the set of failed exchanges.
package usage

import (
	"math"
	"slices"
	"strings"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/manifest"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/media"
)

// Key is a registry key in microseconds since trace start.
type Key int64

// KeyFromSeconds converts a trace-relative timestamp into a Key.
func KeyFromSeconds(ts float64) Key {
	return Key(math.Round(ts * 1e6))
}

// Seconds converts the key back to seconds.
func (k Key) Seconds() float64 {
	return float64(k) / 1e6
}

// PreseedStep separates manifests loaded from disk (1 ms).
const PreseedStep Key = 1000

type registryEntry struct {
	key      Key
	manifest manifest.Manifest
}

// Registry is the ordered set of manifests keyed by first-seen time. Keys
// are strictly increasing in insertion order.
type Registry struct {
	entries []registryEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers m at the time it was first seen. When that key would not
// follow the last key, the last key plus one is used instead.
func (r *Registry) Add(ts float64, m manifest.Manifest) Key {
	return r.AddAt(KeyFromSeconds(ts), m)
}

// AddAt registers m under key, bumping it past the last key when needed.
func (r *Registry) AddAt(key Key, m manifest.Manifest) Key {
	if n := len(r.entries); n > 0 {
		if last := r.entries[n-1].key; key <= last {
			key = last + 1
		}
	}
	r.entries = append(r.entries, registryEntry{key: key, manifest: m})
	return key
}

// AddUnique registers m unless a manifest with the same video name already
// exists, in which case the existing instance is returned.
func (r *Registry) AddUnique(ts float64, m manifest.Manifest) (manifest.Manifest, bool) {
	if existing := r.FindName(m.VideoName()); existing != nil {
		return existing, false
	}
	r.Add(ts, m)
	return m, true
}

// FindName returns the first manifest whose video name equals name.
func (r *Registry) FindName(name string) manifest.Manifest {
	for _, e := range r.entries {
		if e.manifest.VideoName() == name {
			return e.manifest
		}
	}
	return nil
}

// FindVideo returns the first manifest whose non-empty video name is
// contained in objName.
func (r *Registry) FindVideo(objName string) manifest.Manifest {
	for _, e := range r.entries {
		name := e.manifest.VideoName()
		if name != "" && strings.Contains(objName, name) {
			return e.manifest
		}
	}
	return nil
}

// FindHLS returns the first HLS manifest named name.
func (r *Registry) FindHLS(name string) manifest.Manifest {
	for _, e := range r.entries {
		if e.manifest.IsType(media.VideoTypeHLS) && e.manifest.VideoName() == name {
			return e.manifest
		}
	}
	return nil
}

// Manifests returns the manifests in key order.
func (r *Registry) Manifests() []manifest.Manifest {
	out := make([]manifest.Manifest, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.manifest
	}
	return out
}

// Keys returns the registry keys in insertion order.
func (r *Registry) Keys() []Key {
	out := make([]Key, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.key
	}
	return out
}

// KeyOf returns the key under which m is registered.
func (r *Registry) KeyOf(m manifest.Manifest) (Key, bool) {
	i := slices.IndexFunc(r.entries, func(e registryEntry) bool { return e.manifest == m })
	if i < 0 {
		return 0, false
	}
	return r.entries[i].key, true
}

// Len returns the number of registered manifests.
func (r *Registry) Len() int {
	return len(r.entries)
}
