package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"fossmodmanager/install"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// installDoneMsg carries the settled batch outcomes into the model.
type installDoneMsg struct {
	outcomes []install.Outcome
}

// installModel controls the UI for the install command
type installModel struct {
	spinner spinner.Model
	app     *app
	paths   []string
	events  chan install.ProgressEvent
	results chan []install.Outcome

	// State
	status     string
	installing map[string]float64 // mod name -> progress
	completed  []string
	errors     []string
	outcomes   []install.Outcome
	done       bool
}

func initialInstallModel(a *app, paths []string) installModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return installModel{
		spinner:    s,
		app:        a,
		paths:      paths,
		events:     make(chan install.ProgressEvent, 100), // Buffer slightly to avoid blocking
		results:    make(chan []install.Outcome, 1),
		status:     fmt.Sprintf("Installing %d archives...", len(paths)),
		installing: make(map[string]float64),
	}
}

func (m installModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.startInstall(),
		m.waitForActivity(),
	)
}

func (m installModel) startInstall() tea.Cmd {
	return func() tea.Msg {
		// Run the batch in a separate goroutine; closing the event channel
		// afterwards is what tells waitForActivity the batch settled.
		go func() {
			outcomes := m.app.installer.InstallBatch(context.Background(), m.paths)
			m.results <- outcomes
			close(m.events)
		}()
		return nil
	}
}

func (m installModel) waitForActivity() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return installDoneMsg{outcomes: <-m.results}
		}
		return ev
	}
}

func (m installModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.done {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case install.ProgressEvent:
		switch msg.Type {
		case install.EventStarted:
			m.installing[msg.ModName] = 0

		case install.EventProgress:
			m.installing[msg.ModName] = msg.Progress

		case install.EventFinished:
			delete(m.installing, msg.ModName)
			if msg.Success {
				m.completed = append(m.completed, msg.Message)
			} else {
				m.errors = append(m.errors, fmt.Sprintf("%s: %s", msg.ModName, msg.Message))
			}
		}
		return m, m.waitForActivity()

	case installDoneMsg:
		m.done = true
		m.outcomes = msg.outcomes
		m.status = "Finished"
		return m, tea.Quit
	}

	return m, nil
}

func (m installModel) View() string {
	var symbol string
	if m.done {
		symbol = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("✓")
	} else {
		symbol = m.spinner.View()
	}

	s := fmt.Sprintf("\n %s %s\n\n", symbol, m.status)

	if len(m.installing) > 0 {
		s += lipgloss.NewStyle().Bold(true).Render("Installing:") + "\n"
		for _, path := range m.paths {
			name := filepath.Base(path)
			name = name[:len(name)-len(filepath.Ext(name))]
			progress, active := m.installing[name]
			if !active {
				continue
			}
			s += fmt.Sprintf("  • %s (%.0f%%)\n", name, progress*100)
		}
		s += "\n"
	}

	if len(m.errors) > 0 {
		s += lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("Errors:") + "\n"
		for _, e := range m.errors {
			s += fmt.Sprintf("  • %s\n", e)
		}
		s += "\n"
	}

	if len(m.completed) > 0 {
		s += lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("Completed:") + "\n"
		for _, c := range m.completed {
			s += fmt.Sprintf("  • %s\n", c)
		}
		s += "\n"
	}

	return s
}
