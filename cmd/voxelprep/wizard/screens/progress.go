package screens

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mrsinham/voxelprep/cmd/voxelprep/wizard/components"
	"github.com/mrsinham/voxelprep/internal/pipeline"
)

// TickMsg drives the polling of the run's progress reporter.
type TickMsg time.Time

// CompletionMsg is sent when the pipeline run finishes.
type CompletionMsg struct {
	Processed int
	Failed    int
	Duration  time.Duration
	OutputDir string
}

// ErrorMsg is sent when the run fails at setup level.
type ErrorMsg struct {
	Error error
}

var (
	progressBarStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("63"))

	progressBarEmptyStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	progressPercentStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("63")).
				Bold(true)

	progressDetailStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244"))
)

// ProgressScreen displays a running pipeline by polling its reporter. The
// pipeline writes statuses from its own goroutine; the screen only ever
// reads snapshots.
type ProgressScreen struct {
	reporter  *pipeline.BufferReporter
	startTime time.Time
	cancelled bool
	width     int
}

func NewProgressScreen(reporter *pipeline.BufferReporter) *ProgressScreen {
	return &ProgressScreen{
		reporter:  reporter,
		startTime: time.Now(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Init implements tea.Model.
func (s *ProgressScreen) Init() tea.Cmd {
	return tick()
}

// Update implements tea.Model.
func (s *ProgressScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			s.cancelled = true
			return s, tea.Quit
		}
	case tea.WindowSizeMsg:
		s.width = msg.Width
	case TickMsg:
		return s, tick()
	}
	return s, nil
}

// Cancelled reports whether the user aborted the screen.
func (s *ProgressScreen) Cancelled() bool {
	return s.cancelled
}

// View implements tea.Model.
func (s *ProgressScreen) View() string {
	if s.cancelled {
		return "Cancelled.\n"
	}

	title := components.TitleStyle.Render("Preprocessing images...")

	status, _ := s.reporter.Last()
	var percent float64
	if status.TotalImages > 0 {
		percent = status.Progress * 100
	}

	barWidth := 40
	if s.width > 60 {
		barWidth = min(60, s.width/2)
	}

	lines := []string{
		title,
		"",
		fmt.Sprintf("%s %s", s.renderBar(percent, barWidth),
			progressPercentStyle.Render(fmt.Sprintf("%d%%", int(percent)))),
		progressDetailStyle.Render(fmt.Sprintf("Image %d/%d", status.CurrentImage, status.TotalImages)),
	}
	if status.CurrentStep != "" {
		lines = append(lines, progressDetailStyle.Render(status.CurrentStep))
	}
	if status.TotalSubsteps > 0 {
		lines = append(lines, progressDetailStyle.Render(
			fmt.Sprintf("Substep %d/%d", status.CurrentSubstep, status.TotalSubsteps)))
	}

	if recent := s.reporter.Lines(); len(recent) > 0 {
		start := max(0, len(recent)-3)
		lines = append(lines, "")
		for _, l := range recent[start:] {
			lines = append(lines, components.ErrorStyle.Render(l))
		}
	}

	lines = append(lines, "",
		progressDetailStyle.Render(fmt.Sprintf("Elapsed: %s", time.Since(s.startTime).Round(time.Second))),
		components.HintStyle.Render("Ctrl+C to abort"))

	return strings.Join(lines, "\n")
}

func (s *ProgressScreen) renderBar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	return progressBarStyle.Render(strings.Repeat("█", filled)) +
		progressBarEmptyStyle.Render(strings.Repeat("░", width-filled))
}
