package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// traceList is a custom flag type for repeatable -trace flags.
type traceList []string

func (h *traceList) String() string {
	return strings.Join(*h, ", ")
}

func (h *traceList) Set(value string) error {
	*h = append(*h, value)
	return nil
}

// ParseFlags parses command-line flags and returns a Config.
func ParseFlags() (*Config, error) {
	return ParseArgs(flag.CommandLine, os.Args[1:])
}

// ParseArgs parses args with fs. Trace directories come from repeated
// -trace flags followed by any positional arguments.
func ParseArgs(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := DefaultConfig()
	var traces traceList

	fs.Usage = func() {
		w := fs.Output()
		fmt.Fprintf(w, `video-usage-analyzer - correlate captured video traffic into per-segment usage

Usage:
  video-usage-analyzer [flags] <TRACE_DIR>...

Input:
`)
		printFlagCategory(fs, []string{"trace", "rules", "parallel"})

		fmt.Fprintf(w, "\nAnalysis Preferences:\n")
		printFlagCategory(fs, []string{"startup-delay", "dev", "abs-time", "thumbnails"})

		fmt.Fprintf(w, "\nFFmpeg:\n")
		printFlagCategory(fs, []string{"ffmpeg", "ffmpeg-loglevel", "probe-timeout"})

		fmt.Fprintf(w, "\nOutput:\n")
		printFlagCategory(fs, []string{"report", "tui"})

		fmt.Fprintf(w, "\nObservability:\n")
		printFlagCategory(fs, []string{"metrics", "metrics-textfile", "v", "log-format"})

		fmt.Fprintf(w, "\nDiagnostics:\n")
		printFlagCategory(fs, []string{"check", "skip-preflight"})

		fmt.Fprintf(w, `
Examples:
  # Analyze one trace and browse the result
  video-usage-analyzer -tui ./traces/session1

  # Analyze a batch with custom extraction rules
  video-usage-analyzer -rules rules.yaml -parallel 4 ./traces/*

`)
	}

	// Input
	fs.Var(&traces, "trace", "Trace directory containing a .har capture (can repeat)")
	fs.StringVar(&cfg.RulesPath, "rules", cfg.RulesPath, "YAML file of per-URL segment/quality extraction rules")
	fs.IntVar(&cfg.Parallel, "parallel", cfg.Parallel, "Trace directories analyzed concurrently")

	// Analysis preferences
	fs.Float64Var(&cfg.StartupDelay, "startup-delay", cfg.StartupDelay, "Player startup delay in seconds applied to each manifest")
	fs.BoolVar(&cfg.DevMode, "dev", cfg.DevMode, "Keep the video_segments folder after analysis")
	fs.BoolVar(&cfg.AbsoluteTime, "abs-time", cfg.AbsoluteTime, "Use capture wall-clock time in debug segment names")
	fs.BoolVar(&cfg.Thumbnails, "thumbnails", cfg.Thumbnails, "Extract a thumbnail and probe metadata per segment")

	// FFmpeg
	fs.StringVar(&cfg.FFmpegPath, "ffmpeg", cfg.FFmpegPath, "Path to FFmpeg binary")
	fs.StringVar(&cfg.FFmpegLogLevel, "ffmpeg-loglevel", cfg.FFmpegLogLevel, `FFmpeg loglevel while probing: "info", "verbose", "debug"`)
	fs.DurationVar(&cfg.ProbeTimeout, "probe-timeout", cfg.ProbeTimeout, "Timeout per FFmpeg invocation (0 = none)")

	// Output
	fs.BoolVar(&cfg.WriteReport, "report", cfg.WriteReport, "Write video_usage.json into each trace directory")
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Browse the result in a terminal viewer (single trace only)")

	// Observability
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty = disabled)")
	fs.StringVar(&cfg.MetricsTextfile, "metrics-textfile", cfg.MetricsTextfile, "Write final metrics to this file in text exposition format")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, `Log level: "debug", "info", "warn" or "error" (-v forces debug)`)

	// Diagnostics (double-dash convention)
	fs.BoolVar(&cfg.Check, "check", cfg.Check, "Run preflight checks and exit")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.TraceDirs = append(cfg.TraceDirs, traces...)
	cfg.TraceDirs = append(cfg.TraceDirs, fs.Args()...)

	return cfg, nil
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(fs *flag.FlagSet, names []string) {
	w := fs.Output()
	fs.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				printFlag(w, f)
				return
			}
		}
	})
}

func printFlag(w io.Writer, f *flag.Flag) {
	fmt.Fprintf(w, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
	if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" && f.DefValue != "[]" {
		fmt.Fprintf(w, " (default %s)", f.DefValue)
	}
	fmt.Fprintln(w)
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	switch f.DefValue {
	case "true", "false":
		return ""
	}

	if strings.HasSuffix(f.DefValue, "s") || strings.HasSuffix(f.DefValue, "m") || strings.HasSuffix(f.DefValue, "h") {
		return "duration"
	}

	if _, err := fmt.Sscanf(f.DefValue, "%d", new(int)); err == nil {
		return "int"
	}

	return "string"
}
