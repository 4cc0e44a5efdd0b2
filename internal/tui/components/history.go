package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/tessro/ensemble/internal/protocol"
	"github.com/tessro/ensemble/internal/tui/styles"
)

// History displays recently started tracks
type History struct{}

// NewHistory creates a new History component
func NewHistory() *History {
	return &History{}
}

// Render renders the history panel, newest entry first.
func (h *History) Render(entries []protocol.HistoryEntry, width, height int, focused bool) string {
	title := styles.PanelTitle("History", focused)

	var content string
	if len(entries) == 0 {
		content = styles.Muted.Render("No history yet")
	} else {
		content = h.renderHistory(entries, width-4, height-4)
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

func (h *History) renderHistory(entries []protocol.HistoryEntry, width, maxLines int) string {
	lines := make([]string, 0, maxLines)

	// Fixed overhead: " — " (3) + padding for time (8)
	const overhead = 11

	for i, entry := range entries {
		if i >= maxLines {
			break
		}

		track := entry.Track

		// Time ago (right-aligned)
		timeAgo := formatTimeAgo(entry.StartedAt)
		timeWidth := runewidth.StringWidth(timeAgo)

		available := width - overhead - timeWidth
		title, artist := fitTitleArtist(track.Title, track.Artist, available)

		trackInfo := fmt.Sprintf("%s — %s", title, artist)
		trackInfoLen := runewidth.StringWidth(title) + 3 + runewidth.StringWidth(artist)

		// Calculate padding for right-alignment
		padding := width - trackInfoLen - timeWidth
		if padding < 1 {
			padding = 1
		}

		line := fmt.Sprintf("%s%s%s",
			trackInfo,
			lipgloss.NewStyle().Width(padding).Render(""),
			styles.Dim.Render(timeAgo))

		lines = append(lines, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func formatTimeAgo(t time.Time) string {
	d := time.Since(t)

	if d < time.Minute {
		return "now"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return t.Format("Jan 2")
}
