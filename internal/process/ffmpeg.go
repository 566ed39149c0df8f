package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/logging"
)

// ErrFileNotFound is returned by Probe when ffmpeg could not open the file.
var ErrFileNotFound = errors.New("ffmpeg: no such file")

// FFmpegConfig holds configuration for ffmpeg invocations.
type FFmpegConfig struct {
	// BinaryPath is the path to the ffmpeg binary.
	BinaryPath string

	// LogLevel is the ffmpeg log level. Probing needs at least "info"
	// for the stream description to be printed.
	LogLevel string

	// Timeout bounds a single invocation; zero means no limit.
	Timeout time.Duration
}

// DefaultFFmpegConfig returns an FFmpegConfig with sensible defaults.
func DefaultFFmpegConfig() *FFmpegConfig {
	return &FFmpegConfig{
		BinaryPath: "ffmpeg",
		LogLevel:   "info",
		Timeout:    30 * time.Second,
	}
}

// FFmpegProber probes media files and extracts thumbnails.
type FFmpegProber struct {
	config *FFmpegConfig
	runner CommandRunner
	output *logging.OutputHandler
	logger *slog.Logger
}

// NewFFmpegProber creates a prober. A nil runner uses ExecRunner; output
// may be nil when tool output does not need to be kept.
func NewFFmpegProber(cfg *FFmpegConfig, runner CommandRunner, output *logging.OutputHandler, logger *slog.Logger) *FFmpegProber {
	if cfg == nil {
		cfg = DefaultFFmpegConfig()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegProber{config: cfg, runner: runner, output: output, logger: logger}
}

// Name returns "ffmpeg".
func (f *FFmpegProber) Name() string {
	return "ffmpeg"
}

// Config returns the configuration.
func (f *FFmpegProber) Config() *FFmpegConfig {
	return f.config
}

func (f *FFmpegProber) probeArgs(path string) []string {
	return []string{"-hide_banner", "-loglevel", f.config.LogLevel, "-i", path}
}

func (f *FFmpegProber) thumbnailArgs(src, dst string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-y", "-i", src,
		"-ss", "00:00:00",
		"-vframes", "1",
		dst,
	}
}

// CommandString returns the command line for args, for logging.
func (f *FFmpegProber) CommandString(args []string) string {
	return f.config.BinaryPath + " " + strings.Join(args, " ")
}

func (f *FFmpegProber) run(ctx context.Context, args []string) (string, error) {
	if f.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
	}

	f.logger.Debug("ffmpeg_command", "command", f.CommandString(args))

	out, err := f.runner.Run(ctx, f.config.BinaryPath, args...)
	text := string(out)
	if f.output != nil && text != "" {
		f.output.HandleOutput(text)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return text, ctxErr
	}
	return text, err
}

// Probe runs "ffmpeg -i path" and parses the stream description. ffmpeg
// exits non-zero when no output file is given, so an exit error with a
// printed description is not a failure.
func (f *FFmpegProber) Probe(ctx context.Context, path string) (Metadata, error) {
	out, err := f.run(ctx, f.probeArgs(path))
	if strings.Contains(out, "No such file") {
		return Metadata{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if out == "" {
		if err == nil {
			err = errors.New("empty output")
		}
		return Metadata{}, fmt.Errorf("ffmpeg probe %s: %w", path, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Metadata{}, fmt.Errorf("ffmpeg probe %s: %w", path, err)
	}
	md, perr := ParseMetadata(out)
	if perr != nil {
		f.logger.Debug("ffmpeg_probe_parse", "path", path, "error", perr)
	}
	return md, nil
}

// Thumbnail renders the first frame of src into dst and returns the image
// bytes. Any file already at dst is removed first.
func (f *FFmpegProber) Thumbnail(ctx context.Context, src, dst string) ([]byte, error) {
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove old thumbnail: %w", err)
	}

	if _, err := f.run(ctx, f.thumbnailArgs(src, dst)); err != nil {
		return nil, fmt.Errorf("ffmpeg thumbnail %s: %w", src, err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		return nil, fmt.Errorf("read thumbnail: %w", err)
	}
	return data, nil
}
