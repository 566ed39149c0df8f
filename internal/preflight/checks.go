// Package preflight provides startup validation checks.
package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/process"
	"github.com/randomizedcoder/go-video-usage-analyzer/internal/trace"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// Options selects what RunAll verifies.
type Options struct {
	TraceDirs  []string
	FFmpegPath string
	Thumbnails bool // ffmpeg is required only when thumbnails are extracted
	Parallel   int

	// Runner executes the ffmpeg version probe; nil uses process.ExecRunner.
	Runner process.CommandRunner
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

func (r *Result) add(c Check) {
	r.Checks = append(r.Checks, c)
	if !c.Passed {
		r.Passed = false
	}
}

// RunAll executes all preflight checks.
func RunAll(ctx context.Context, opts Options) *Result {
	result := &Result{
		Checks: make([]Check, 0, 2+2*len(opts.TraceDirs)),
		Passed: true,
	}

	result.add(checkFileDescriptors(opts.Parallel))

	runner := opts.Runner
	if runner == nil {
		runner = process.ExecRunner{}
	}
	ffmpegCheck := checkFFmpeg(ctx, runner, opts.FFmpegPath)
	if !ffmpegCheck.Passed && !opts.Thumbnails {
		// Thumbnails disabled: ffmpeg is optional
		ffmpegCheck.Passed = true
		ffmpegCheck.Warning = true
	}
	result.add(ffmpegCheck)

	for _, dir := range opts.TraceDirs {
		result.add(checkTraceDir(dir))
		result.add(checkCapture(dir))
	}
	return result
}

// checkFileDescriptors verifies sufficient file descriptors are available.
func checkFileDescriptors(parallel int) Check {
	if parallel < 1 {
		parallel = 1
	}
	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		return Check{
			Name:    "file_descriptors",
			Passed:  true,
			Warning: true,
			Message: "unable to check (non-Linux or restricted)",
		}
	}

	// Each analysis holds a few artifact files plus an ffmpeg child
	required := parallel*16 + 64
	actual := int(limit.Cur)

	return Check{
		Name:     "file_descriptors",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -n %d (need %d for %d parallel traces)", actual, required, parallel),
	}
}

// checkFFmpeg verifies FFmpeg is available and working.
func checkFFmpeg(ctx context.Context, runner process.CommandRunner, path string) Check {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	output, err := runner.Run(ctx, path, "-version")
	if err != nil {
		return Check{
			Name:    "ffmpeg",
			Passed:  false,
			Message: fmt.Sprintf("not found at %s: %v", path, err),
		}
	}

	return Check{
		Name:    "ffmpeg",
		Passed:  true,
		Message: fmt.Sprintf("found at %s (version %s)", path, ffmpegVersion(string(output))),
	}
}

// ffmpegVersion extracts the version from "ffmpeg version 6.1 Copyright ...".
func ffmpegVersion(output string) string {
	first, _, _ := strings.Cut(output, "\n")
	parts := strings.Fields(first)
	if len(parts) >= 3 {
		return parts[2]
	}
	return "unknown"
}

// checkTraceDir verifies the trace directory exists and accepts the
// artifact folders written next to the capture.
func checkTraceDir(dir string) Check {
	name := "trace_dir:" + filepath.Base(dir)

	info, err := os.Stat(dir)
	if err != nil {
		return Check{Name: name, Passed: false, Message: err.Error()}
	}
	if !info.IsDir() {
		return Check{Name: name, Passed: false, Message: dir + " is not a directory"}
	}

	f, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		return Check{Name: name, Passed: false, Message: fmt.Sprintf("%s not writable: %v", dir, err)}
	}
	f.Close()
	os.Remove(f.Name())

	return Check{Name: name, Passed: true, Message: dir + " writable"}
}

// checkCapture verifies the trace directory holds a HAR capture.
func checkCapture(dir string) Check {
	name := "capture:" + filepath.Base(dir)
	path, err := trace.FindHAR(dir)
	if err != nil {
		return Check{Name: name, Passed: false, Message: err.Error()}
	}
	return Check{Name: name, Passed: true, Message: filepath.Base(path)}
}

// PrintResults writes the preflight check results to w.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	kind, _, _ := strings.Cut(name, ":")
	switch kind {
	case "file_descriptors":
		return "ulimit -n 8192 (or edit /etc/security/limits.conf)"
	case "ffmpeg":
		return "install ffmpeg (apt install ffmpeg / brew install ffmpeg) or pass -thumbnails=false"
	case "trace_dir":
		return "check the path and its permissions"
	case "capture":
		return "export the capture as a .har file into the trace directory"
	default:
		return "see documentation"
	}
}
