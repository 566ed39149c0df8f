package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Tests: GetFailureStyle
// =============================================================================

func TestGetFailureStyle(t *testing.T) {
	tests := []struct {
		name      string
		failed    int
		processed int
		want      lipgloss.TerminalColor
	}{
		{"no failures", 0, 100, colorSuccess},
		{"nothing processed", 0, 0, colorSuccess},
		{"under 5%", 1, 99, colorWarning},
		{"at 5%", 5, 95, colorError},
		{"all failed", 3, 0, colorError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetFailureStyle(tt.failed, tt.processed).GetForeground()
			if got != tt.want {
				t.Errorf("GetFailureStyle(%d, %d) foreground = %v, want %v", tt.failed, tt.processed, got, tt.want)
			}
		})
	}
}

func TestGetMissingStyle(t *testing.T) {
	if got := GetMissingStyle(0).GetForeground(); got != colorSuccess {
		t.Errorf("GetMissingStyle(0) foreground = %v, want %v", got, colorSuccess)
	}
	if got := GetMissingStyle(2).GetForeground(); got != colorWarning {
		t.Errorf("GetMissingStyle(2) foreground = %v, want %v", got, colorWarning)
	}
}

// =============================================================================
// Tests: RenderKeyValue
// =============================================================================

func TestRenderKeyValue(t *testing.T) {
	result := RenderKeyValue("Label", "Value")

	if !strings.Contains(result, "Label") {
		t.Error("result should contain label")
	}
	if !strings.Contains(result, "Value") {
		t.Error("result should contain value")
	}
}

func TestRenderKeyStyled(t *testing.T) {
	result := RenderKeyStyled("Failed", "3", valueBadStyle)

	if !strings.Contains(result, "Failed:") {
		t.Error("result should contain label")
	}
	if !strings.Contains(result, "3") {
		t.Error("result should contain value")
	}
}

// =============================================================================
// Tests: RenderProgressBar
// =============================================================================

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		name     string
		progress float64
		width    int
	}{
		{"0%", 0, 20},
		{"50%", 0.5, 20},
		{"100%", 1.0, 20},
		{"narrow", 0.5, 5},
		{"over 100%", 1.5, 20},
		{"negative", -0.1, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RenderProgressBar(tt.progress, tt.width)
			if !strings.Contains(result, "%") {
				t.Error("result should contain percentage")
			}
		})
	}
}

// =============================================================================
// Tests: repeatChar
// =============================================================================

func TestRepeatChar(t *testing.T) {
	tests := []struct {
		char  rune
		count int
		want  string
	}{
		{'x', 0, ""},
		{'x', 1, "x"},
		{'x', 5, "xxxxx"},
		{'█', 3, "███"},
		{'x', -1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := repeatChar(tt.char, tt.count); got != tt.want {
				t.Errorf("repeatChar(%q, %d) = %q, want %q", tt.char, tt.count, got, tt.want)
			}
		})
	}
}
