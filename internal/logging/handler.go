package logging

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single log line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the maximum number of lines kept for the summary.
	MaxBufferedLines = 100
)

// OutputHandler handles the console output of ffmpeg invocations made while
// probing segments. It buffers recent lines for the run summary and logs them.
type OutputHandler struct {
	source  string
	logger  *slog.Logger
	verbose bool

	// Circular buffer for recent lines
	buffer []string
	bufIdx int
	mu     sync.Mutex
}

// NewOutputHandler creates a handler for the tool output of one trace.
func NewOutputHandler(source string, logger *slog.Logger, verbose bool) *OutputHandler {
	return &OutputHandler{
		source:  source,
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// HandleReader reads from an io.Reader and processes each line.
func (h *OutputHandler) HandleReader(r io.Reader) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, MaxLineLength)
	scanner.Buffer(buf, MaxLineLength)

	for scanner.Scan() {
		h.HandleLine(scanner.Text())
	}
}

// HandleOutput processes captured command output.
func (h *OutputHandler) HandleOutput(out string) {
	h.HandleReader(strings.NewReader(out))
}

// HandleLine processes a single line of tool output.
func (h *OutputHandler) HandleLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	h.mu.Unlock()

	h.logLine(line)
}

func (h *OutputHandler) logLine(line string) {
	level := h.classifyLine(line)

	// In non-verbose mode, only log warnings and errors
	if !h.verbose && level == slog.LevelDebug {
		return
	}

	h.logger.Log(context.Background(), level, "ffmpeg_output",
		"source", h.source,
		"line", line,
	)
}

// classifyLine determines the log level for a line based on content.
func (h *OutputHandler) classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	// Error patterns
	if strings.Contains(lower, "[error]") ||
		strings.Contains(lower, "no such file") ||
		strings.Contains(lower, "invalid data found") ||
		strings.Contains(lower, "moov atom not found") {
		return slog.LevelWarn
	}

	// Warning patterns
	if strings.Contains(lower, "[warning]") ||
		strings.Contains(lower, "could not find codec") ||
		strings.Contains(lower, "error while decoding") {
		return slog.LevelWarn
	}

	// Stream description (Duration:, Stream #0, Input #0) and the rest
	return slog.LevelDebug
}

// RecentLines returns the most recent lines from the buffer.
func (h *OutputHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		if h.buffer[idx] != "" {
			lines = append(lines, h.buffer[idx])
		}
	}

	return lines
}

// ErrorPatterns are common probe failures extracted for the run summary.
var ErrorPatterns = []string{
	"No such file or directory",
	"Invalid data found",
	"moov atom not found",
	"could not find codec parameters",
	"Error while decoding",
	"Output file is empty",
}

// CountErrors counts occurrences of error patterns in the buffer.
func (h *OutputHandler) CountErrors() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make(map[string]int)
	for _, line := range h.buffer {
		if line == "" {
			continue
		}
		for _, pattern := range ErrorPatterns {
			if strings.Contains(line, pattern) {
				counts[pattern]++
			}
		}
	}

	return counts
}
