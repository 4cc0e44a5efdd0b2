package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/tessro/ensemble/internal/client"
	"github.com/tessro/ensemble/internal/core"
	"github.com/tessro/ensemble/internal/protocol"
	"github.com/tessro/ensemble/internal/tui/components"
	"github.com/tessro/ensemble/internal/tui/styles"
)

// Panel represents which panel is focused
type Panel int

const (
	PanelNowPlaying Panel = iota
	PanelQueue
	PanelDevices
	PanelHistory
)

const seekStepMs = 5000

// App holds the TUI application state
type App struct {
	client   *client.Client
	agent    *client.Agent
	deviceID string
	refresh  time.Duration
}

// NewApp creates a new TUI application around a running sync agent.
func NewApp(c *client.Client, agent *client.Agent, deviceID string, refresh time.Duration) *App {
	if refresh == 0 {
		refresh = 250 * time.Millisecond
	}
	return &App{
		client:   c,
		agent:    agent,
		deviceID: deviceID,
		refresh:  refresh,
	}
}

// Model is the main TUI model
type Model struct {
	app          *App
	width        int
	height       int
	focusedPanel Panel

	// State mirrored from the coordinator
	state   *protocol.State
	devices []core.Device
	history []protocol.HistoryEntry
	conn    client.ConnState

	// Components
	nowPlaying  *components.NowPlaying
	queueView   *components.Queue
	devicesView *components.Devices
	historyView *components.History

	// Overlays
	showHelp bool

	// Queue filter state
	showFilter    bool
	filterInput   textinput.Model
	filterMatches []int // indexes into state.Queue
	filterCursor  int

	// Error handling
	lastError   error
	errorExpiry time.Time // When to clear the error

	// Selection banner from other collaborators
	selection       *protocol.TrackSelected
	selectionExpiry time.Time

	// Quit flag
	quitting bool
}

// NewModel creates a new TUI model
func NewModel(app *App) Model {
	ti := textinput.New()
	ti.Placeholder = "Filter queue..."
	ti.CharLimit = 100
	ti.Width = 50

	return Model{
		app:         app,
		conn:        app.agent.Conn(),
		nowPlaying:  components.NewNowPlaying(),
		queueView:   components.NewQueue(),
		devicesView: components.NewDevices(),
		historyView: components.NewHistory(),
		filterInput: ti,
	}
}

// Messages
type tickMsg time.Time
type agentEventMsg client.Event
type devicesMsg []core.Device
type historyMsg []protocol.HistoryEntry
type errMsg error
type refreshAfterActionMsg struct{}

// Commands
func (m Model) tick() tea.Cmd {
	return tea.Tick(m.app.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitEvent blocks on the agent's event stream.
func (m Model) waitEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.app.agent.Events()
		if !ok {
			return nil
		}
		return agentEventMsg(ev)
	}
}

func (m Model) fetchDevices() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		devices, err := m.app.client.GetDevices(ctx)
		if err != nil {
			return errMsg(err)
		}
		return devicesMsg(devices)
	}
}

func (m Model) fetchHistory() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		history, err := m.app.client.GetHistory(ctx)
		if err != nil {
			return errMsg(err)
		}
		return historyMsg(history)
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.tick(),
		m.waitEvent(),
		m.fetchDevices(),
		m.fetchHistory(),
	)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		// Rendering picks up the interpolated position; nothing to fetch.
		if m.lastError != nil && time.Now().After(m.errorExpiry) {
			m.lastError = nil
		}
		if m.selection != nil && time.Now().After(m.selectionExpiry) {
			m.selection = nil
		}
		return m, m.tick()

	case agentEventMsg:
		return m.handleAgentEvent(client.Event(msg))

	case devicesMsg:
		m.devices = msg
		return m, nil

	case historyMsg:
		m.history = msg
		return m, nil

	case errMsg:
		m.lastError = msg
		m.errorExpiry = time.Now().Add(5 * time.Second) // Show error for 5 seconds
		return m, nil

	case refreshAfterActionMsg:
		return m, m.fetchHistory()
	}

	// Forward other messages to textinput when the filter is active
	if m.showFilter {
		var inputCmd tea.Cmd
		m.filterInput, inputCmd = m.filterInput.Update(msg)
		return m, inputCmd
	}

	return m, nil
}

// handleAgentEvent folds a coordinator broadcast into the model.
func (m Model) handleAgentEvent(ev client.Event) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.waitEvent()}

	switch ev.Kind {
	case client.EventStateChanged:
		oldTrack := ""
		if m.state != nil && m.state.CurrentTrack != nil {
			oldTrack = m.state.CurrentTrack.ID
		}
		m.state = ev.State
		newTrack := ""
		if m.state != nil && m.state.CurrentTrack != nil {
			newTrack = m.state.CurrentTrack.ID
		}
		if newTrack != oldTrack {
			cmds = append(cmds, m.fetchHistory())
		}
		if m.showFilter {
			m.filterMatches = m.matchQueue(m.filterInput.Value())
		}

	case client.EventDevicesUpdated:
		m.devices = ev.Devices

	case client.EventTrackSelected:
		m.selection = ev.Selected
		m.selectionExpiry = time.Now().Add(8 * time.Second)

	case client.EventConnChanged:
		m.conn = ev.Conn
		if ev.Conn == client.StateSynced {
			cmds = append(cmds, m.fetchDevices(), m.fetchHistory())
		}
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Global keys (always work)
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	// Help overlay
	if m.showHelp {
		switch msg.String() {
		case "?", "esc":
			m.showHelp = false
		}
		return m, nil
	}

	// Filter overlay
	if m.showFilter {
		return m.handleFilterKeyPress(msg)
	}

	// Normal mode
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "?":
		m.showHelp = true
		return m, nil

	case "/":
		m.showFilter = true
		m.filterInput.SetValue("")
		m.filterInput.Focus()
		m.filterMatches = m.matchQueue("")
		m.filterCursor = 0
		return m, textinput.Blink

	case "tab":
		m.focusedPanel = (m.focusedPanel + 1) % 4
		return m, nil

	case "shift+tab":
		m.focusedPanel = (m.focusedPanel + 3) % 4
		return m, nil
	}

	// Playback controls
	switch msg.String() {
	case " ":
		return m, m.togglePlayPause()
	case "n":
		return m, m.control(m.app.client.Next)
	case "p":
		return m, m.control(m.app.client.Prev)
	case "s":
		return m, m.toggleShuffle()
	case "right":
		return m, m.seekBy(seekStepMs)
	case "left":
		return m, m.seekBy(-seekStepMs)
	case "r":
		return m, tea.Batch(m.fetchDevices(), m.fetchHistory())
	}

	// Panel-specific keys
	switch m.focusedPanel {
	case PanelQueue:
		switch msg.String() {
		case "j", "down":
			m.queueView.ScrollDown()
		case "k", "up":
			m.queueView.ScrollUp()
		}
	case PanelDevices:
		switch msg.String() {
		case "j", "down":
			m.devicesView.SelectNext()
		case "k", "up":
			m.devicesView.SelectPrev()
		case "enter":
			return m, m.handoffToDevice()
		}
	}

	return m, nil
}

func (m Model) handleFilterKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.showFilter = false
		m.filterInput.Blur()
		return m, nil

	case "enter":
		if len(m.filterMatches) > 0 && m.filterCursor < len(m.filterMatches) {
			idx := m.filterMatches[m.filterCursor]
			m.showFilter = false
			m.filterInput.Blur()
			return m, m.playQueueTrack(idx)
		}
		return m, nil

	case "ctrl+s":
		// Announce the selection to collaborators without playing it.
		if len(m.filterMatches) > 0 && m.filterCursor < len(m.filterMatches) {
			idx := m.filterMatches[m.filterCursor]
			m.showFilter = false
			m.filterInput.Blur()
			return m, m.selectQueueTrack(idx)
		}
		return m, nil

	case "up", "ctrl+p":
		if m.filterCursor > 0 {
			m.filterCursor--
		}
		return m, nil

	case "down", "ctrl+n":
		if m.filterCursor < len(m.filterMatches)-1 {
			m.filterCursor++
		}
		return m, nil
	}

	// Handle text input
	var inputCmd tea.Cmd
	m.filterInput, inputCmd = m.filterInput.Update(msg)
	m.filterMatches = m.matchQueue(m.filterInput.Value())
	m.filterCursor = 0
	return m, inputCmd
}

// matchQueue returns the queue indexes whose title or artist contains the
// query, case-insensitively.
func (m Model) matchQueue(query string) []int {
	if m.state == nil {
		return nil
	}
	query = strings.ToLower(strings.TrimSpace(query))
	var matches []int
	for i, t := range m.state.Queue {
		if query == "" ||
			strings.Contains(strings.ToLower(t.Title), query) ||
			strings.Contains(strings.ToLower(t.Artist), query) {
			matches = append(matches, i)
		}
	}
	return matches
}

func (m Model) togglePlayPause() tea.Cmd {
	playing := m.state != nil && m.state.IsPlaying
	return func() tea.Msg {
		ctx := context.Background()
		var err error
		if playing {
			err = m.app.client.Pause(ctx)
		} else {
			err = m.app.client.Resume(ctx)
		}
		if err != nil {
			return errMsg(err)
		}
		return nil
	}
}

func (m Model) control(op func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := op(context.Background()); err != nil {
			return errMsg(err)
		}
		return refreshAfterActionMsg{}
	}
}

func (m Model) toggleShuffle() tea.Cmd {
	enabled := m.state != nil && m.state.ShuffleEnabled
	return func() tea.Msg {
		if err := m.app.client.SetShuffle(context.Background(), !enabled); err != nil {
			return errMsg(err)
		}
		return nil
	}
}

func (m Model) seekBy(deltaMs int64) tea.Cmd {
	if m.state == nil {
		return nil
	}
	target := m.app.agent.Position(time.Now()) + deltaMs
	if target < 0 {
		target = 0
	}
	return func() tea.Msg {
		if err := m.app.client.Seek(context.Background(), target); err != nil {
			return errMsg(err)
		}
		return nil
	}
}

// playQueueTrack restarts the current context anchored at a queue entry.
func (m Model) playQueueTrack(idx int) tea.Cmd {
	if m.state == nil || idx < 0 || idx >= len(m.state.Queue) {
		return nil
	}
	track := m.state.Queue[idx]
	pc := core.PlayContext{Kind: core.ContextTrack, TrackID: track.ID}
	if m.state.Context != nil {
		pc = *m.state.Context
	}
	shuffle := m.state.ShuffleEnabled
	return func() tea.Msg {
		_, err := m.app.client.Play(context.Background(), protocol.PlayRequest{
			TrackID:  track.ID,
			Context:  pc,
			Shuffle:  shuffle,
			DeviceID: m.app.deviceID,
		})
		if err != nil {
			return errMsg(err)
		}
		return refreshAfterActionMsg{}
	}
}

func (m Model) selectQueueTrack(idx int) tea.Cmd {
	if m.state == nil || idx < 0 || idx >= len(m.state.Queue) {
		return nil
	}
	trackID := m.state.Queue[idx].ID
	return func() tea.Msg {
		if err := m.app.client.Select(context.Background(), trackID, m.app.deviceID); err != nil {
			return errMsg(err)
		}
		return nil
	}
}

// handoffToDevice replays the current session with the selected device as
// the audio producer.
func (m Model) handoffToDevice() tea.Cmd {
	selected := m.devicesView.Selected()
	if selected < 0 || selected >= len(m.devices) {
		return nil
	}
	if m.state == nil || m.state.CurrentTrack == nil || m.state.Context == nil {
		return nil
	}
	target := m.devices[selected].ID
	req := protocol.PlayRequest{
		TrackID:      m.state.CurrentTrack.ID,
		Context:      *m.state.Context,
		Shuffle:      m.state.ShuffleEnabled,
		DeviceID:     m.app.deviceID,
		TargetDevice: target,
	}
	return func() tea.Msg {
		if _, err := m.app.client.Play(context.Background(), req); err != nil {
			return errMsg(err)
		}
		return refreshAfterActionMsg{}
	}
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.width == 0 {
		return "Loading..."
	}

	// Show overlays if active
	if m.showHelp {
		return m.renderHelp()
	}

	if m.showFilter {
		return m.renderFilter()
	}

	// Main layout: two columns
	// Left: Now Playing (top), Queue (bottom)
	// Right: Devices (top), History (bottom)

	leftWidth := m.width * 60 / 100
	rightWidth := m.width - leftWidth - 2
	topHeight := m.height * 40 / 100
	bottomHeight := m.height - topHeight - 2

	var queueTracks []core.TrackRef
	queueIndex := 0
	if m.state != nil {
		queueTracks = m.state.Queue
		queueIndex = m.state.QueueIndex
	}
	positionMs := m.app.agent.Position(time.Now())

	nowPlaying := m.nowPlaying.Render(m.state, positionMs, leftWidth-2, topHeight-2, m.focusedPanel == PanelNowPlaying)
	queueView := m.queueView.Render(queueTracks, queueIndex, leftWidth-2, bottomHeight-2, m.focusedPanel == PanelQueue)
	devicesView := m.devicesView.Render(m.devices, rightWidth-2, topHeight-2, m.focusedPanel == PanelDevices)
	historyView := m.historyView.Render(m.history, rightWidth-2, bottomHeight-2, m.focusedPanel == PanelHistory)

	// Compose layout
	leftCol := lipgloss.JoinVertical(lipgloss.Left, nowPlaying, queueView)
	rightCol := lipgloss.JoinVertical(lipgloss.Left, devicesView, historyView)

	main := lipgloss.JoinHorizontal(lipgloss.Top, leftCol, rightCol)

	// Status bar
	statusBar := m.renderStatusBar()

	return lipgloss.JoinVertical(lipgloss.Left, main, statusBar)
}

func (m Model) renderStatusBar() string {
	status := styles.Dim.Render("q:quit  ?:help  /:filter  space:play/pause  n:next  p:prev  s:shuffle  ←/→:seek  tab:switch panel")

	switch {
	case m.lastError != nil:
		status = styles.Paused.Render("Error: " + m.lastError.Error())
	case m.selection != nil:
		status = styles.Highlight.Render("👆 " + m.selection.Track.Artist + " - " + m.selection.Track.Title + " selected")
	case m.conn != client.StateSynced:
		status = styles.Paused.Render("⚡ " + m.conn.String())
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 1).
		Render(status)
}

func (m Model) renderHelp() string {
	title := "Ensemble UI - Keyboard Shortcuts"
	divider := styles.Repeat("═", len(title))

	help := `
  ` + title + `
  ` + divider + `

  Global
  ──────
  q, Ctrl+C    Quit
  ?            Toggle help
  /            Filter queue
  Tab          Next panel
  Shift+Tab    Previous panel
  r            Refresh

  Playback
  ────────
  Space        Play/Pause
  n            Next track
  p            Previous track
  s            Toggle shuffle
  ←/→          Seek 5s

  Queue Panel
  ───────────
  j/↓          Scroll down
  k/↑          Scroll up

  Devices Panel
  ─────────────
  j/↓          Select next
  k/↑          Select previous
  Enter        Hand playback to device

  Filter Overlay
  ──────────────
  Enter        Play selected track
  Ctrl+S       Highlight for collaborators

  Press ? or Esc to close
`

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.BorderStyle.Render(help))
}

func (m Model) renderFilter() string {
	var b strings.Builder

	// Title
	b.WriteString(styles.Highlight.Render("Filter Queue"))
	b.WriteString("\n\n")

	// Filter input
	b.WriteString(m.filterInput.View())
	b.WriteString("\n\n")

	// Results
	if len(m.filterMatches) == 0 {
		b.WriteString(styles.Subtitle.Render("No matching tracks"))
	} else {
		maxResults := 10
		for i, idx := range m.filterMatches {
			if i >= maxResults {
				b.WriteString(styles.Subtitle.Render("  ...and more"))
				break
			}
			track := m.state.Queue[idx]
			line := track.Title + " " + styles.Subtitle.Render(track.Artist)
			if i == m.filterCursor {
				b.WriteString(lipgloss.NewStyle().Background(styles.Surface).Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
	}

	// Help
	b.WriteString("\n")
	b.WriteString(styles.Subtitle.Render("↑/↓:nav  Enter:play  Ctrl+S:highlight  Esc:close"))

	content := lipgloss.NewStyle().
		Width(60).
		Padding(1, 2).
		Render(b.String())

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.FocusedBorder.Render(content))
}

// Run starts the TUI application. The agent is started here and stopped
// when the UI exits.
func Run(c *client.Client, deviceID, deviceName, theme string, refresh time.Duration, logger zerolog.Logger) error {
	styles.SetTheme(theme)

	guard := client.NewGuard(client.NewLogOutput(logger), logger)
	agent := client.NewAgent(c, guard, deviceID, deviceName, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = agent.Run(ctx) }()

	app := NewApp(c, agent, deviceID, refresh)
	model := NewModel(app)
	p := tea.NewProgram(model, tea.WithAltScreen())

	_, err := p.Run()
	return err
}
