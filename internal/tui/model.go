package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-video-usage-analyzer/internal/stats"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// ProgressMsg carries an updated batch snapshot.
type ProgressMsg struct {
	Progress Progress
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// Progress is a snapshot of a batch run.
type Progress struct {
	Total  int // Trace directories in the batch
	Done   int // Finished, successfully or not
	Failed int

	// Reports holds the summary of every finished trace, in completion order.
	Reports []*stats.ReportStats
}

// ProgressSource provides batch snapshots.
type ProgressSource interface {
	Progress() Progress
}

// Model represents the TUI state.
type Model struct {
	// Configuration
	metricsAddr string

	// Current state
	progress     Progress
	selected     int
	detailedView bool
	startTime    time.Time
	lastUpdate   time.Time

	// Display options
	width  int
	height int

	source ProgressSource

	quitting bool
}

// Config holds TUI configuration.
type Config struct {
	MetricsAddr string
	Source      ProgressSource
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		metricsAddr: cfg.MetricsAddr,
		source:      cfg.Source,
		startTime:   time.Now(),
		lastUpdate:  time.Now(),
		width:       80,
		height:      24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	// tea.WithAltScreen() is passed when creating the program.
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "esc":
			if m.detailedView {
				m.detailedView = false
				return m, nil
			}
			m.quitting = true
			return m, tea.Quit
		case "d", "enter":
			m.detailedView = !m.detailedView
			return m, nil
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil
		case "down", "j":
			if m.selected < len(m.progress.Reports)-1 {
				m.selected++
			}
			return m, nil
		case "r":
			return m, tickCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		if m.source != nil {
			m.setProgress(m.source.Progress())
		}
		return m, tickCmd()

	case ProgressMsg:
		m.setProgress(msg.Progress)
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) setProgress(p Progress) {
	m.progress = p
	m.lastUpdate = time.Now()
	if m.selected >= len(p.Reports) {
		m.selected = max(len(p.Reports)-1, 0)
	}
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.detailedView && m.Selected() != nil {
		return m.renderDetailedView()
	}
	return m.renderSummaryView()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the viewer started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// Fraction returns the share of finished traces (0.0 to 1.0).
func (m Model) Fraction() float64 {
	if m.progress.Total == 0 {
		return 0
	}
	return float64(m.progress.Done) / float64(m.progress.Total)
}

// Finished reports whether every trace of the batch is done.
func (m Model) Finished() bool {
	return m.progress.Total > 0 && m.progress.Done >= m.progress.Total
}

// Selected returns the highlighted report, or nil when none has finished.
func (m Model) Selected() *stats.ReportStats {
	if m.selected < 0 || m.selected >= len(m.progress.Reports) {
		return nil
	}
	return m.progress.Reports[m.selected]
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendProgress sends a progress update to the TUI.
func SendProgress(p *tea.Program, progress Progress) {
	if p != nil {
		p.Send(ProgressMsg{Progress: progress})
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}
