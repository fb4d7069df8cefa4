package viz

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gonum.org/v1/gonum/floats"
)

// ProgressMsg reports one optimizer iteration to the live view.
type ProgressMsg struct {
	Iter      int
	Objective float64
}

// DoneMsg signals the end of the run, with the run error if any.
type DoneMsg struct {
	Err error
}

// Model is the bubbletea model for a live optimization monitor. It
// drains a channel the optimizer goroutine feeds through its observer.
type Model struct {
	updates <-chan tea.Msg
	total   int

	iter    int
	history []float64
	done    bool
	err     error
}

func NewModel(updates <-chan tea.Msg, totalSteps int) Model {
	return Model{updates: updates, total: totalSteps}
}

func (m Model) wait() tea.Cmd {
	return func() tea.Msg { return <-m.updates }
}

func (m Model) Init() tea.Cmd { return m.wait() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case ProgressMsg:
		m.iter = msg.Iter
		m.history = append(m.history, msg.Objective)
		return m, m.wait()
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	header := HeaderStyle.Render("fdfdopt · live optimization")

	var objective, best float64
	if len(m.history) > 0 {
		objective = m.history[len(m.history)-1]
		best = floats.Max(m.history)
	}

	stats := lipgloss.JoinVertical(lipgloss.Left,
		LabelStyle.Render("iteration")+ValueStyle.Render(fmt.Sprintf("%d / %d", m.iter+1, m.total)),
		LabelStyle.Render("objective")+ValueStyle.Render(fmt.Sprintf("%.6e", objective)),
		LabelStyle.Render("best")+ValueStyle.Render(fmt.Sprintf("%.6e", best)),
	)

	progress := 0.0
	if m.total > 0 {
		progress = float64(m.iter+1) / float64(m.total)
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		stats,
		GraphStyle.Render(Sparkline(m.history, 60)),
		ProgressBar(progress, 60),
	)

	status := HelpStyle.Render("q: quit")
	if m.done {
		if m.err != nil {
			status = HelpStyle.Render("run failed: " + m.err.Error())
		} else {
			status = HelpStyle.Render("run complete")
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, PanelStyle.Render(body), status)
}
