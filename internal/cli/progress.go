package cli

import (
	"context"
	"fmt"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/minime/inspirations/internal/tagging"
)

const snapshotPollInterval = time.Second

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

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

// tickMsg triggers the next snapshot poll.
type tickMsg time.Time

// runDoneMsg carries the runner's final error.
type runDoneMsg struct{ err error }

// progressModel renders a live tagging runner.
type progressModel struct {
	runner   *tagging.Runner
	snap     tagging.Snapshot
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
	runErr   <-chan error
}

func newProgressModel(runner *tagging.Runner, runErr <-chan error) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	return progressModel{
		runner:   runner,
		progress: prog,
		theme:    defaultTheme,
		runErr:   runErr,
	}
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(tickCmd(), waitForRun(m.runErr), m.progress.Init())
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		m.snap = m.runner.Snapshot()
		if m.done {
			return m, nil
		}
		return m, tickCmd()

	case runDoneMsg:
		m.done = true
		m.err = msg.err
		m.snap = m.runner.Snapshot()
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.done {
		return m.finalView()
	}
	if m.snap.Batch == 0 {
		return "Selecting candidates...\n"
	}

	total := m.snap.Attempted + m.snap.Remaining
	var pct float64
	if total > 0 {
		pct = float64(m.snap.Attempted) / float64(total)
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[batch %d]", m.snap.Batch))
	counts := fmt.Sprintf("%d/%d assets, %d labeled, %d errors",
		m.snap.Attempted, total, m.snap.Labeled, m.snap.Errors)
	line := fmt.Sprintf("%s %s %s", status, m.progress.ViewAs(pct), counts)

	eta := ""
	if m.snap.ETA > 0 {
		eta = fmt.Sprintf("%.1f assets/s, eta ~%s", m.snap.Rate, m.snap.ETA.Round(time.Second))
	}
	hint := m.theme.hintStyle().Render("Press Ctrl+C to stop")
	if eta != "" {
		return fmt.Sprintf("%s\n%s\n%s\n", line, eta, hint)
	}
	return fmt.Sprintf("%s\n%s\n", line, hint)
}

func (m progressModel) finalView() string {
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Tagging failed: %s\n", m.err))
	}
	var out string
	out += m.theme.completedStyle().Render("✓ Done") + "\n\n"
	out += fmt.Sprintf("  Attempted:        %d\n", m.snap.Attempted)
	out += fmt.Sprintf("  Labeled:          %d\n", m.snap.Labeled)
	if m.snap.FallbackLabeled > 0 {
		out += fmt.Sprintf("  Fallback labeled: %d\n", m.snap.FallbackLabeled)
	}
	if m.snap.Errors > 0 {
		out += m.theme.errorStyle().Render(fmt.Sprintf("  Errors:           %d\n", m.snap.Errors))
	}
	return out
}

func waitForRun(runErr <-chan error) tea.Cmd {
	return func() tea.Msg {
		return runDoneMsg{err: <-runErr}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(snapshotPollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// runWithProgress drives the runner in the background while the interactive
// display polls its snapshot. Ctrl+C cancels the run.
func runWithProgress(ctx context.Context, runner *tagging.Runner) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- runner.Run(ctx)
	}()

	p := tea.NewProgram(newProgressModel(runner, runErr))
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok {
		if m.quitting {
			cancel()
			<-runErr
			return nil
		}
		return m.err
	}
	return nil
}
