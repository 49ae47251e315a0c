package cli

import (
	"fmt"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/confab-dev/confab-go/internal/confab"
	"github.com/confab-dev/confab-go/internal/jobs"
	"github.com/confab-dev/confab-go/internal/models"
)

// refreshInterval controls how often the display re-reads the record store.
// The supervisor polls the server on its own schedule.
const refreshInterval = 500 * time.Millisecond

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// tickMsg triggers re-reading the job record
type tickMsg time.Time

// recordMsg carries the current job record
type recordMsg struct {
	rec *jobs.Record
}

// progressModel is the bubbletea model for job progress.
type progressModel struct {
	client   *confab.Client
	jobID    string
	rec      *jobs.Record
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

// newProgressModel creates a new progress model.
func newProgressModel(c *confab.Client, jobID string) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		client:   c,
		jobID:    jobID,
		rec:      c.Job(jobID),
		progress: prog,
		theme:    defaultTheme,
	}
}

// runProgress drives the display until the job is terminal or detached.
func runProgress(c *confab.Client, jobID string) error {
	m, err := tea.NewProgram(newProgressModel(c, jobID)).Run()
	if err != nil {
		return err
	}
	final := m.(progressModel)
	if final.quitting {
		return nil
	}
	return final.err
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init returns the initial command (start the refresh loop).
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.readRecord()

	case recordMsg:
		if msg.rec == nil {
			m.err = fmt.Errorf("job is no longer tracked")
			m.done = true
			return m, tea.Quit
		}

		m.rec = msg.rec

		switch m.rec.Status {
		case models.JobStatusCompleted:
			m.done = true
			return m, tea.Quit
		case models.JobStatusFailed:
			m.done = true
			if m.rec.Error != "" {
				m.err = fmt.Errorf("%s", m.rec.Error)
			} else {
				m.err = fmt.Errorf("job failed with unknown error")
			}
			return m, tea.Quit
		}

		// Keep refreshing while the job runs
		return m, tickCmd()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m progressModel) readRecord() tea.Cmd {
	return func() tea.Msg {
		return recordMsg{rec: m.client.Job(m.jobID)}
	}
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	if m.rec == nil {
		return "Loading job status...\n"
	}

	pct := float64(m.rec.Progress) / 100.0

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.rec.Status))
	progressBar := m.progress.ViewAs(pct)

	counts := fmt.Sprintf("%d%%", m.rec.Progress)
	if m.rec.TotalFiles > 0 {
		counts = fmt.Sprintf("%d/%d files", m.rec.FilesProcessed, m.rec.TotalFiles)
	} else if m.rec.ExtractedItems > 0 {
		counts = fmt.Sprintf("%d items", m.rec.ExtractedItems)
	}

	hint := m.theme.hintStyle().Render("Press Ctrl+C to continue in background")

	return fmt.Sprintf("%s %s %s\n%s\n", status, progressBar, counts, hint)
}

// finalView renders the completion message.
func (m progressModel) finalView() string {
	if m.quitting {
		msg := fmt.Sprintf("\nJob %s continues in background.\nUse 'confab jobs %s' to check status.\n",
			m.jobID, m.jobID)
		return m.theme.hintStyle().Render(msg)
	}

	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Job failed: %s\n", m.err))
	}

	if m.rec != nil {
		out := m.theme.completedStyle().Render("✓ Completed") + "\n\n"
		if m.rec.TotalFiles > 0 {
			out += fmt.Sprintf("  Files processed:   %d\n", m.rec.FilesProcessed)
		}
		if m.rec.ExtractedItems > 0 {
			out += fmt.Sprintf("  Extracted items:   %d\n", m.rec.ExtractedItems)
		}
		for k, v := range m.rec.Results {
			out += fmt.Sprintf("  %s: %v\n", k, v)
		}
		if m.rec.EndTime != nil {
			out += fmt.Sprintf("  Duration:          %s\n",
				m.rec.EndTime.Sub(m.rec.StartTime).Round(time.Second))
		}
		return out
	}
	return m.theme.completedStyle().Render("✓ Completed") + "\n"
}
