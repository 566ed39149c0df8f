package analysis

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/classify"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/manifest"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/media"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/trace"
)

// timeString renders the download time used in artifact names: capture
// wall-clock "sec.usec" of the first response packet when abs is set,
// otherwise milliseconds since trace start.
func timeString(resp *trace.Response, abs bool) string {
	if abs && resp.FirstPacket != nil {
		return fmt.Sprintf("%d.%06d", resp.FirstPacket.Seconds, resp.FirstPacket.Microseconds)
	}
	return fmt.Sprintf("%09.0f", resp.Timestamp*1000)
}

func withExtension(name, ext string) string {
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// debugName is the file name a media payload is saved under:
// <id>_<segment>[_R_<range>]_dl_<time>_S_<session start ms>_Q_<quality>.<ext>
func debugName(ex *trace.Exchange, id *media.Identity, segment int, abs bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s_%08d", id.ID, segment)
	if id.ByteRange != nil {
		b.WriteString("_R_")
		b.WriteString(id.ByteRange.String())
	}
	b.WriteString("_dl_")
	b.WriteString(timeString(ex.Response, abs))

	sessionStart := 0.0
	if ex.Session != nil {
		sessionStart = ex.Session.StartTime
	}
	fmt.Fprintf(&b, "_S_%08.0f", sessionStart*1000)
	b.WriteString("_Q_")
	b.WriteString(id.QualityOrUnknown())
	return withExtension(b.String(), id.Extension)
}

// scratchName is the file a segment is assembled into for thumbnail
// extraction and probing.
func scratchName(segment int, id *media.Identity) string {
	return withExtension(fmt.Sprintf("%08d_%s", segment, id.ID), id.Extension)
}

// dashDumpName names a saved DASH or smooth-streaming manifest.
func dashDumpName(ex *trace.Exchange, abs bool) string {
	obj := ex.ObjectName()
	prefix := classify.ExtractName(obj)
	if prefix == "manifest" {
		prefix = "_SSM_manifest"
	}
	suffix := "_ManifestDash.mpd"
	if strings.HasSuffix(obj, "manifest") {
		suffix = "_SSMedia.xml"
	}
	return prefix + "__" + timeString(ex.Response, abs) + suffix
}

// hlsDumpName names a saved HLS playlist.
func hlsDumpName(ex *trace.Exchange, videoName string, abs bool) string {
	return timeString(ex.Response, abs) + "_" + videoName + "_ManifestHLS.m3u8"
}

// hlsNamePatterns derive a video name from well-known playlist layouts.
// The first capture group is the name.
var hlsNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`livetv/\d+/([a-zA-Z0-9]*)/latest\.m3u8`),       // /livetv/30/8249/latest.m3u8
	regexp.MustCompile(`livetv/\d+/([a-zA-Z0-9]*)/\d+/playlist\.m3u8`), // /livetv/30/8249/03/playlist.m3u8
	regexp.MustCompile(`/aav/.+/([AB]\d+U)\d\.m3u8`),                   // /aav/30/B001573958U3/B001573958U3.m3u8
	regexp.MustCompile(`/aav/.+/HLS\d/([AB]\d+U)\d_\d\.m3u8`),          // /aav/30/B001844891U3/HLS2/B001844891U0_2.m3u8
	regexp.MustCompile(`/aav/.+/WebVTT\d/([AB]\d+U)\d_\d\.m3u8`),       // /aav/30/B001844891U3/WebVTT1/B001844891U0_7.m3u8
	regexp.MustCompile(`/movie/.+/([AB]\d+U)\d\.m3u8`),                 // /c3/30/movie/2016_12/B002021484/B002021484U3/B002021484U3.m3u8
	regexp.MustCompile(`/channel\((.+)\)/\d+\.m3u8`),                   // /Content/HLS_hls.pr/Live/channel(FNCHD.gmott.1080.mobile)/05.m3u8
	regexp.MustCompile(`/channel\((.+)\)/index\.m3u8`),                 // /Content/HLS_hls.pr/Live/channel(FNCHD.gmott.1080.mobile)/index.m3u8
	regexp.MustCompile(`/([a-zA-Z0-9]*)\.m3u8`),                        // /B002021484U3.m3u8
}

// hlsVideoName derives the video name of a playlist from its object name.
// Dots are replaced by underscores; unmatched layouts are "unknown".
func hlsVideoName(objName string) string {
	for _, re := range hlsNamePatterns {
		if m := re.FindStringSubmatch(objName); m != nil {
			return strings.ReplaceAll(m[1], ".", "_")
		}
	}
	return manifest.UnknownName
}

// preseedHLSName names an HLS manifest loaded from the downloads folder.
func preseedHLSName(file string) string {
	stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return strings.ReplaceAll(stem, ".", "_")
}
