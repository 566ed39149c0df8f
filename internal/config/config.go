// Package config provides configuration management for the video usage
// analyzer.
package config

import "time"

// Config holds all configuration options for a batch of analyses.
type Config struct {
	// Input
	TraceDirs []string `json:"trace_dirs"`
	RulesPath string   `json:"rules_path"`
	Parallel  int      `json:"parallel"`

	// Analysis preferences
	StartupDelay float64 `json:"startup_delay"` // seconds, applied to each new manifest
	DevMode      bool    `json:"dev_mode"`      // keep video_segments after the run
	AbsoluteTime bool    `json:"absolute_time"` // debug names carry capture wall-clock time
	Thumbnails   bool    `json:"thumbnails"`

	// FFmpeg
	FFmpegPath     string        `json:"ffmpeg_path"`
	FFmpegLogLevel string        `json:"ffmpeg_log_level"`
	ProbeTimeout   time.Duration `json:"probe_timeout"`

	// Output
	WriteReport bool `json:"write_report"`
	TUIEnabled  bool `json:"tui"`

	// Observability
	MetricsAddr     string `json:"metrics_addr"` // empty = disabled
	MetricsTextfile string `json:"metrics_textfile"`
	Verbose         bool   `json:"verbose"`
	LogFormat       string `json:"log_format"` // json, text
	LogLevel        string `json:"log_level"`

	// Diagnostic modes
	Check         bool `json:"check"`
	SkipPreflight bool `json:"skip_preflight"`
}

// Prefs are the per-analysis preferences. They are copied into every run
// and never modified by it.
type Prefs struct {
	StartupDelay float64
	DevMode      bool
	AbsoluteTime bool
	Thumbnails   bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Parallel: 2,

		Thumbnails: true,

		FFmpegPath:     "ffmpeg",
		FFmpegLogLevel: "info",
		ProbeTimeout:   30 * time.Second,

		WriteReport: true,
		TUIEnabled:  false,

		Verbose:   false,
		LogFormat: "json",
		LogLevel:  "info",
	}
}

// Prefs returns the analysis preferences held by cfg.
func (c *Config) Prefs() Prefs {
	return Prefs{
		StartupDelay: c.StartupDelay,
		DevMode:      c.DevMode,
		AbsoluteTime: c.AbsoluteTime,
		Thumbnails:   c.Thumbnails,
	}
}
