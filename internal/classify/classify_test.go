package classify

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		objName  string
		wantKind Kind
		wantName string
	}{
		{"/vod/show.mpd", KindDASHManifest, ""},
		{"/vod/abc_video_1.mp4", KindDASHMedia, "abcvideo1"},
		{"/vod/abc_audio_1.mp4", KindIgnored, ""},
		{"/vod/clip.ism", KindDASHMedia, "clip"},
		{"/live/master.m3u8", KindHLSManifest, ""},
		{"/live/cc/subs.m3u8", KindIgnored, ""},
		{"/live/seg_0001.ts", KindHLSMedia, "video.ts"},
		{"/live/subs.vtt", KindCaption, ""},
		{"/img/poster.jpeg", KindImage, "poster.jpeg"},
		{"/img/poster.PNG", KindUnhandled, ""},
		{"/site/app.css", KindIgnored, ""},
		{"/site/data.json", KindIgnored, ""},
		{"/bin/blob.bin", KindUnhandled, ""},
		{"/Show.ism/manifest", KindDASHManifest, ""},
		{"/Show.ism/QualityLevels(300)/Fragments(video_1000)", KindUnlabeledMedia, "_1000)"},
		{"/Show.ism/QualityLevels(300)/Fragments(audio=1000)", KindIgnored, ""},
		{"/noext/segment", KindIgnored, ""},
	}

	for _, tt := range tests {
		t.Run(tt.objName, func(t *testing.T) {
			got := Classify(tt.objName)
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", got.Name, tt.wantName)
			}
		})
	}
}

func TestClassify_SmoothFlag(t *testing.T) {
	if !Classify("/Show.ism/manifest").Smooth {
		t.Error("smooth manifest not flagged")
	}
	if Classify("/vod/show.mpd").Smooth {
		t.Error(".mpd flagged as smooth")
	}
}

func TestExtension(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"seg.ts", ".ts"},
		{"a.b.mp4", ".mp4"},
		{".hidden", ""},
		{"manifest", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Extension(tt.name); got != tt.want {
				t.Errorf("Extension(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestFullName(t *testing.T) {
	if got := FullName("/a/b/c.ts"); got != "c.ts" {
		t.Errorf("FullName = %q", got)
	}
	if got := FullName("c.ts"); got != "c.ts" {
		t.Errorf("FullName without slash = %q", got)
	}
	if got := FullName("/a/b/"); got != "" {
		t.Errorf("FullName trailing slash = %q", got)
	}
}

func TestTruncateFrom(t *testing.T) {
	if got := TruncateFrom("abc_720p_3.mp4", "_"); got != "_720p_3.mp4" {
		t.Errorf("TruncateFrom = %q", got)
	}
	if got := TruncateFrom("abc", "_"); got != "abc" {
		t.Errorf("TruncateFrom without target = %q", got)
	}
}

func TestExtractName(t *testing.T) {
	tests := []struct {
		objName string
		want    string
	}{
		{"/vod/abc_video_1.mp4", "abcvideo1"},
		{"/vod/movie-1.mp4", "movie-1"},
		{"/vod/noterminator", "noterminator"},
		{"/vod/(x)", "(x)"},
	}
	for _, tt := range tests {
		t.Run(tt.objName, func(t *testing.T) {
			if got := ExtractName(tt.objName); got != tt.want {
				t.Errorf("ExtractName(%q) = %q, want %q", tt.objName, got, tt.want)
			}
		})
	}
}
