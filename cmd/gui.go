package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fossmodmanager/install"
	"fossmodmanager/logger"
	"fossmodmanager/mirror"
)

// guiCmd represents the gui command
var guiCmd = &cobra.Command{
	Use:   "gui",
	Short: "Launch the graphical interface to manage mods",
	Long:  `Launch an interactive TUI to browse, toggle, and delete installed mods and skins.`,
	Run: func(_ *cobra.Command, _ []string) {
		runGUI()
	},
}

func init() {
	rootCmd.AddCommand(guiCmd)
}

// Model represents the state of the TUI
type Model struct {
	app           *app
	entries       []mirror.Entry
	thumbs        map[string]string // thumbnail path -> encoded payload
	selectedIndex int
	loading       bool
	installing    bool
	error         string
	message       string
	width         int
	height        int
	spinnerFrame  int

	pathInput   textinput.Model
	inputActive bool
}

// Message types
type entriesLoadedMsg struct {
	entries []mirror.Entry
	thumbs  map[string]string
	warning string
}

type errorMsg string

type spinnerTickMsg struct{}

type toggleSettledMsg struct {
	result mirror.ToggleResult
}

type deleteDoneMsg struct {
	key string
	err error
}

type installSettledMsg struct {
	outcomes []install.Outcome
}

type clearMessageMsg struct{}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Initialize the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadEntries(),
		tickSpinner(),
	)
}

func tickSpinner() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case entriesLoadedMsg:
		m.handleEntriesLoaded(msg)
	case spinnerTickMsg:
		return m.handleSpinnerTick()
	case errorMsg:
		m.error = string(msg)
		m.loading = false
	case toggleSettledMsg:
		return m.handleToggleSettled(msg)
	case installSettledMsg:
		m.installing = false
		outcome := msg.outcomes[0]
		if outcome.Success {
			m.message = "Archive installed"
		} else {
			m.message = fmt.Sprintf("Install failed: %v", outcome.Err)
		}
		return m, tea.Batch(m.loadEntries(), m.clearMessageLater())
	case deleteDoneMsg:
		if msg.err != nil {
			m.message = fmt.Sprintf("Delete failed: %v", msg.err)
			return m, m.clearMessageLater()
		}
		m.message = fmt.Sprintf("Deleted %s", msg.key)
		return m, tea.Batch(m.loadEntries(), m.clearMessageLater())
	case clearMessageMsg:
		m.message = ""
	}
	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.inputActive {
		return m.handleInputKey(msg)
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.selectedIndex > 0 {
			m.selectedIndex--
		}
	case "down", "j":
		if m.selectedIndex < len(m.entries)-1 {
			m.selectedIndex++
		}
	case "r":
		m.loading = true
		return m, tea.Batch(m.loadEntries(), tickSpinner())
	case " ":
		return m.toggleSelected()
	case "d":
		return m.deleteSelected()
	case "i":
		m.pathInput = textinput.New()
		m.pathInput.Placeholder = "/path/to/archive.zip"
		m.pathInput.Focus()
		m.inputActive = true
		return m, textinput.Blink
	}
	return m, nil
}

func (m *Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.inputActive = false
		return m, nil
	case "enter":
		path := strings.TrimSpace(m.pathInput.Value())
		m.inputActive = false
		if path == "" {
			return m, nil
		}
		m.installing = true
		return m, tea.Batch(m.installArchive(path), tickSpinner())
	}

	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

func (m Model) installArchive(path string) tea.Cmd {
	return func() tea.Msg {
		outcomes := m.app.installer.InstallBatch(context.Background(), []string{path})
		return installSettledMsg{outcomes: outcomes}
	}
}

// toggleSelected flips the selected entry optimistically. The row updates
// immediately; the settled result arrives later and may revert it.
func (m *Model) toggleSelected() (tea.Model, tea.Cmd) {
	if len(m.entries) == 0 {
		return m, nil
	}
	entry := m.entries[m.selectedIndex]

	done, err := m.app.mirror.SetEnabled(context.Background(), entry.Key, !entry.Enabled)
	if err != nil {
		m.message = fmt.Sprintf("Cannot toggle %s: %v", entry.Name, err)
		return m, m.clearMessageLater()
	}

	m.syncFromMirror()
	return m, func() tea.Msg {
		return toggleSettledMsg{result: <-done}
	}
}

func (m *Model) deleteSelected() (tea.Model, tea.Cmd) {
	if len(m.entries) == 0 {
		return m, nil
	}
	entry := m.entries[m.selectedIndex]

	return m, func() tea.Msg {
		err := m.app.registry.Delete(context.Background(), entry.Key)
		return deleteDoneMsg{key: entry.Key, err: err}
	}
}

func (m *Model) handleEntriesLoaded(msg entriesLoadedMsg) {
	m.entries = msg.entries
	m.thumbs = msg.thumbs
	m.loading = false
	m.message = msg.warning
	sort.Slice(m.entries, func(i, j int) bool {
		return strings.ToLower(m.entries[i].Name) < strings.ToLower(m.entries[j].Name)
	})
	if m.selectedIndex >= len(m.entries) {
		m.selectedIndex = 0
	}
}

func (m *Model) handleSpinnerTick() (tea.Model, tea.Cmd) {
	m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
	if m.loading || m.installing {
		return m, tickSpinner()
	}
	return m, nil
}

func (m *Model) handleToggleSettled(msg toggleSettledMsg) (tea.Model, tea.Cmd) {
	result := msg.result
	m.syncFromMirror()

	if result.Err != nil {
		m.message = fmt.Sprintf("Toggle failed, reverted: %v", result.Err)
	} else if result.Enabled {
		m.message = fmt.Sprintf("Enabled %s", result.Key)
	} else {
		m.message = fmt.Sprintf("Disabled %s", result.Key)
	}
	return m, m.clearMessageLater()
}

// syncFromMirror re-reads the snapshot so optimistic flips and settled
// refreshes show up without a full reload.
func (m *Model) syncFromMirror() {
	snap, ok := m.app.mirror.Snapshot()
	if !ok {
		return
	}
	m.entries = snap.Entries
	sort.Slice(m.entries, func(i, j int) bool {
		return strings.ToLower(m.entries[i].Name) < strings.ToLower(m.entries[j].Name)
	})
}

func (m Model) clearMessageLater() tea.Cmd {
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return clearMessageMsg{}
	})
}

// loadEntries refreshes the mirror and resolves thumbnails for the new
// render pass.
func (m Model) loadEntries() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()

		snap, err := m.app.mirror.Refresh(ctx)
		if err != nil {
			if _, ok := m.app.mirror.Snapshot(); !ok {
				logger.Log.Errorw("Failed to load mod listing", zap.Error(err))
				return errorMsg(fmt.Sprintf("Failed to load mods: %v", err))
			}
			// Stale listing beats an empty screen.
		}

		m.app.thumbs.BeginPass()
		thumbs := m.app.thumbs.Resolve(ctx, snap.ThumbnailPaths())

		var warning string
		if err != nil {
			warning = fmt.Sprintf("Showing last known listing, refresh failed: %v", err)
		} else if reconcileErr := m.app.mirror.LastReconcileError(); reconcileErr != nil {
			warning = fmt.Sprintf("Disk rescan failed, listing may be stale: %v", reconcileErr)
		}

		return entriesLoadedMsg{entries: snap.Entries, thumbs: thumbs, warning: warning}
	}
}

// View renders the UI
func (m Model) View() string {
	if m.loading {
		return m.renderLoadingScreen()
	}

	if m.error != "" {
		return fmt.Sprintf("Error: %s\n", m.error)
	}

	if len(m.entries) == 0 {
		return "No mods registered. Install some with 'fossmodmanager install <archive>'!\n"
	}

	var output string
	output += renderHeader()
	output += "\n"

	for i, entry := range m.entries {
		output += m.renderEntryRow(i, entry)
		output += "\n"
	}

	if m.inputActive {
		output += "\nInstall archive: " + m.pathInput.View() + "\n"
	}
	if m.installing {
		output += fmt.Sprintf("\n%s Installing...\n", spinnerFrames[m.spinnerFrame])
	}

	output += "\n" + renderFooter()

	if m.message != "" {
		output += "\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.message)
	}

	return output
}

func (m Model) renderLoadingScreen() string {
	spinner := spinnerFrames[m.spinnerFrame]

	loadingStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	return loadingStyle.Render(fmt.Sprintf("%s Loading mods...", spinner)) + "\n"
}

func renderHeader() string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Padding(0, 1)

	return headerStyle.Render(fmt.Sprintf("%-40s %-6s %-12s %-4s %-10s", "Name", "Kind", "Version", "Img", "Status"))
}

func renderFooter() string {
	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Italic(true)

	return footerStyle.Render("↑/k: up  ↓/j: down  space: toggle  i: install  d: delete  r: refresh  q: quit")
}

func (m Model) renderEntryRow(index int, entry mirror.Entry) string {
	pending := m.app.mirror.IsPending(entry.Key)

	var statusColor string
	status := "disabled"
	switch {
	case pending:
		status = "pending"
		statusColor = "11" // Yellow
	case entry.Enabled:
		status = "enabled"
		statusColor = "10" // Green
	default:
		statusColor = "8" // Gray
	}

	rowStyle := lipgloss.NewStyle().Padding(0, 1)
	if index == m.selectedIndex {
		rowStyle = rowStyle.
			Background(lipgloss.Color("8")).
			Bold(true)
	}

	statusStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(statusColor))

	thumbMarker := " "
	if _, ok := m.thumbs[entry.ThumbnailPath]; ok {
		thumbMarker = "▣"
	}

	version := entry.Version
	if version == "" {
		version = "-"
	}

	// Pad status before applying color to maintain column alignment
	paddedStatus := fmt.Sprintf("%-10s", status)
	coloredStatus := statusStyle.Render(paddedStatus)

	row := fmt.Sprintf("%-40s %-6s %-12s %-4s %s",
		truncate(entry.Name, 38),
		kindLabel(entry.Kind),
		truncate(version, 10),
		thumbMarker,
		coloredStatus,
	)

	return rowStyle.Render(row)
}

func runGUI() {
	app := bootstrap(".")

	m := Model{
		app:     app,
		loading: true,
		width:   80,
		height:  24,
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Log.Fatalw("Failed to run GUI", zap.Error(err))
	}
	app.thumbs.Flush()
}
