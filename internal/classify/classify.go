// Package classify derives the content kind and logical names of a captured
// request from its object name (URI path without query parameters).
package classify

import (
	"regexp"
	"strings"
)

// Kind is the classification of a request.
type Kind int

const (
	KindIgnored       Kind = iota // Not video related
	KindUnhandled                 // Unknown extension, logged
	KindDASHManifest              // .mpd or smooth-streaming manifest
	KindDASHMedia                 // .mp4 / .ism fragment
	KindHLSManifest               // .m3u8 playlist
	KindHLSMedia                  // .ts segment
	KindCaption                   // .vtt, recognised but not extracted
	KindImage                     // poster or thumbnail image
	KindUnlabeledMedia            // extensionless smooth-streaming fragment
)

var kindNames = map[Kind]string{
	KindIgnored:        "ignored",
	KindUnhandled:      "unhandled",
	KindDASHManifest:   "dash_manifest",
	KindDASHMedia:      "dash_media",
	KindHLSManifest:    "hls_manifest",
	KindHLSMedia:       "hls_media",
	KindCaption:        "caption",
	KindImage:          "image",
	KindUnlabeledMedia: "unlabeled_media",
}

// String returns the snake_case name used in logs and metrics labels.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Manifest reports whether the kind is a manifest download.
func (k Kind) Manifest() bool {
	return k == KindDASHManifest || k == KindHLSManifest
}

// Media reports whether the kind is a media segment download.
func (k Kind) Media() bool {
	return k == KindDASHMedia || k == KindHLSMedia || k == KindUnlabeledMedia
}

// Result is the outcome of classifying one object name.
type Result struct {
	Kind      Kind
	FullName  string // Trailing path component
	Extension string // Including the leading '.', empty when absent
	Name      string // Target name for media and images
	Smooth    bool   // Smooth-streaming (.ism) addressing
}

const (
	smoothMarker   = ".ism/"
	smoothManifest = "manifest"
)

// Classify routes an object name through the extension table.
func Classify(objName string) Result {
	full := FullName(objName)
	ext := Extension(full)
	r := Result{FullName: full, Extension: ext}

	if ext == "" {
		if !strings.Contains(objName, smoothMarker) {
			r.Kind = KindIgnored
			return r
		}
		r.Smooth = true
		switch {
		case full == smoothManifest:
			r.Kind = KindDASHManifest
		case strings.Contains(full, "video"):
			r.Kind = KindUnlabeledMedia
			r.Name = TruncateFrom(full, "_")
		default:
			r.Kind = KindIgnored
		}
		return r
	}

	switch ext {
	case ".mpd":
		r.Kind = KindDASHManifest
	case ".ism", ".mp4":
		r.Smooth = ext == ".ism"
		if strings.Contains(full, "_audio") {
			r.Kind = KindIgnored
			return r
		}
		r.Kind = KindDASHMedia
		r.Name = ExtractName(objName)
	case ".m3u8":
		// Closed-caption playlists share the extension.
		if strings.Contains(objName, "cc") {
			r.Kind = KindIgnored
			return r
		}
		r.Kind = KindHLSManifest
	case ".ts":
		r.Kind = KindHLSMedia
		r.Name = "video.ts"
	case ".vtt":
		r.Kind = KindCaption
	case ".jpg", ".gif", ".tif", ".png", ".jpeg":
		r.Kind = KindImage
		r.Name = full
	case ".css", ".json", ".html":
		r.Kind = KindIgnored
	default:
		r.Kind = KindUnhandled
	}
	return r
}

// FullName returns the substring after the final '/'.
func FullName(objName string) string {
	return objName[strings.LastIndex(objName, "/")+1:]
}

// Extension returns the substring from the final '.', or "" when the name has
// no '.' past its first character.
func Extension(name string) string {
	if pos := strings.LastIndex(name, "."); pos > 0 {
		return name[pos:]
	}
	return ""
}

// TruncateFrom returns src starting at the first occurrence of target, or src
// unchanged when target does not occur.
func TruncateFrom(src, target string) string {
	if pos := strings.Index(src, target); pos > -1 {
		return src[pos:]
	}
	return src
}

var reNamePart = regexp.MustCompile(`([a-zA-Z0-9\-]*)[_.]`)

// ExtractName derives a logical video name from an object name by joining every
// alphanumeric run terminated by '_' or '.'. When no run matches it falls back
// to the full name up to its first '_'.
func ExtractName(objName string) string {
	matches := reNamePart.FindAllStringSubmatch(objName, -1)
	if len(matches) == 0 {
		full := FullName(objName)
		if pos := strings.Index(full, "_"); pos > -1 {
			return full[:pos]
		}
		return full
	}

	var b strings.Builder
	for _, m := range matches {
		b.WriteString(m[1])
	}
	return b.String()
}
