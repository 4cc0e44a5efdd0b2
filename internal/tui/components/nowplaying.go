package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/ensemble/internal/protocol"
	"github.com/tessro/ensemble/internal/tui/styles"
)

// NowPlaying displays the currently playing track
type NowPlaying struct{}

// NewNowPlaying creates a new NowPlaying component
func NewNowPlaying() *NowPlaying {
	return &NowPlaying{}
}

// Render renders the now playing panel. positionMs is the locally
// interpolated position, which runs ahead of the last broadcast.
func (n *NowPlaying) Render(state *protocol.State, positionMs int64, width, height int, focused bool) string {
	title := styles.PanelTitle("Now Playing", focused)

	var content string
	if state == nil || state.CurrentTrack == nil {
		content = styles.Muted.Render("Nothing playing")
	} else {
		content = n.renderTrack(state, positionMs, width-4)
	}

	panel := styles.Panel(focused).
		Width(width).
		Height(height)

	return panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		content,
	))
}

func (n *NowPlaying) renderTrack(state *protocol.State, positionMs int64, width int) string {
	track := state.CurrentTrack

	// Status icon and track title
	icon := styles.StatusIcon(state.IsPlaying)
	title := styles.Title.Width(width - 4).Render(styles.Truncate(track.Title, width-4))

	// Artist
	artist := styles.Subtitle.Render(styles.Truncate(track.Artist, width-4))

	// Progress bar
	progressWidth := width - 14 // Account for times on either side
	if progressWidth < 10 {
		progressWidth = 10
	}
	percent := 0.0
	if track.DurationMs > 0 {
		percent = float64(positionMs) / float64(track.DurationMs) * 100
	}
	progressBar := styles.ProgressBar(percent, progressWidth)
	currentTime := formatMs(positionMs)
	totalTime := formatMs(track.DurationMs)
	progress := fmt.Sprintf("%s %s %s", currentTime, progressBar, totalTime)

	// Active device and shuffle state
	meta := ""
	if state.ActiveDeviceID != "" {
		meta = "🔊 " + state.ActiveDeviceID
	} else {
		meta = "no active device"
	}
	if state.ShuffleEnabled {
		meta += "  🔀 shuffle"
	}
	meta = styles.Muted.Render(meta)

	// Playback controls indicator
	controls := n.renderControls(state)

	return lipgloss.JoinVertical(lipgloss.Left,
		icon+" "+title,
		"  "+artist,
		"",
		progress,
		"",
		meta,
		controls,
	)
}

func (n *NowPlaying) renderControls(state *protocol.State) string {
	var controls string

	controls += styles.Dim.Render("⏮ ")
	if state.IsPlaying {
		controls += styles.Playing.Render("⏸")
	} else {
		controls += styles.Paused.Render("▶")
	}
	controls += styles.Dim.Render(" ⏭")

	return lipgloss.NewStyle().
		Align(lipgloss.Center).
		Render(controls)
}

func formatMs(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d", m, s)
}
