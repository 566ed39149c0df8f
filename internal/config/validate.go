package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/logging"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config) error {
	var errs []error

	if len(cfg.TraceDirs) == 0 {
		errs = append(errs, ValidationError{
			Field:   "trace_dirs",
			Message: "at least one trace directory is required",
		})
	}
	for _, dir := range cfg.TraceDirs {
		if strings.TrimSpace(dir) == "" {
			errs = append(errs, ValidationError{
				Field:   "trace_dirs",
				Message: "trace directory must not be empty",
			})
		}
	}

	if cfg.Parallel < 1 {
		errs = append(errs, ValidationError{
			Field:   "parallel",
			Message: "must be at least 1",
		})
	}

	if cfg.StartupDelay < 0 {
		errs = append(errs, ValidationError{
			Field:   "startup_delay",
			Message: fmt.Sprintf("must not be negative (got %v)", cfg.StartupDelay),
		})
	}

	if cfg.FFmpegPath == "" {
		errs = append(errs, ValidationError{
			Field:   "ffmpeg_path",
			Message: "must not be empty",
		})
	}

	validLevels := map[string]bool{
		"info": true, "verbose": true, "debug": true, "trace": true,
	}
	if !validLevels[cfg.FFmpegLogLevel] {
		errs = append(errs, ValidationError{
			Field:   "ffmpeg_log_level",
			Message: fmt.Sprintf("must be one of: info, verbose, debug, trace (got %q)", cfg.FFmpegLogLevel),
		})
	}

	if cfg.ProbeTimeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "probe_timeout",
			Message: "must not be negative",
		})
	} else if cfg.ProbeTimeout > 0 && cfg.ProbeTimeout < time.Second {
		errs = append(errs, ValidationError{
			Field:   "probe_timeout",
			Message: fmt.Sprintf("must be at least 1s (got %v)", cfg.ProbeTimeout),
		})
	}

	if cfg.MetricsAddr != "" {
		if err := validateAddr(cfg.MetricsAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "metrics_addr",
				Message: err.Error(),
			})
		}
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: err.Error(),
		})
	}

	if cfg.TUIEnabled && len(cfg.TraceDirs) > 1 {
		errs = append(errs, ValidationError{
			Field:   "tui",
			Message: "the report viewer supports a single trace directory",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// validateAddr checks a host:port listen address.
func validateAddr(addr string) error {
	if strings.Contains(addr, "://") {
		return errors.New("must be host:port, not a URL")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	return nil
}

// ApplyCheckMode modifies config for --check mode: preflight only, verbose.
func ApplyCheckMode(cfg *Config) {
	cfg.Verbose = true
	cfg.TUIEnabled = false
	cfg.WriteReport = false
	cfg.SkipPreflight = false
}
