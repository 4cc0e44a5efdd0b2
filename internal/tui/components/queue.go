package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/tessro/ensemble/internal/core"
	"github.com/tessro/ensemble/internal/tui/styles"
)

// Queue displays the playback queue
type Queue struct {
	offset int
}

// NewQueue creates a new Queue component
func NewQueue() *Queue {
	return &Queue{}
}

// ScrollDown scrolls the queue down
func (q *Queue) ScrollDown() {
	q.offset++
}

// ScrollUp scrolls the queue up
func (q *Queue) ScrollUp() {
	if q.offset > 0 {
		q.offset--
	}
}

// Render renders the queue panel. currentIndex marks the playing track.
func (q *Queue) Render(tracks []core.TrackRef, currentIndex, width, height int, focused bool) string {
	title := styles.PanelTitle("Queue", focused)

	var content string
	if len(tracks) == 0 {
		content = styles.Muted.Render("Queue is empty")
	} else {
		content = q.renderQueue(tracks, currentIndex, width-4, height-4)
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

func (q *Queue) renderQueue(tracks []core.TrackRef, currentIndex, width, maxLines int) string {
	// Adjust offset if needed
	if q.offset >= len(tracks) {
		q.offset = 0
	}

	// Calculate visible range
	visibleCount := maxLines - 1 // Leave room for "more" indicator
	if visibleCount < 1 {
		visibleCount = 1
	}

	start := q.offset
	end := start + visibleCount
	if end > len(tracks) {
		end = len(tracks)
	}

	lines := make([]string, 0, end-start+1)

	// Fixed overhead: "XX. " (4) + "▶ " or "  " (2) + " — " (3) = 9 chars
	const overhead = 9

	for i := start; i < end; i++ {
		track := tracks[i]

		// Number
		num := fmt.Sprintf("%2d.", i+1)

		// Calculate available space for title + artist
		available := width - overhead
		title, artist := fitTitleArtist(track.Title, track.Artist, available)

		// Highlight the playing track
		var line string
		if i == currentIndex {
			line = styles.Playing.Render(fmt.Sprintf("%s ▶ %s — %s", num, title, artist))
		} else {
			line = fmt.Sprintf("%s   %s — %s",
				styles.Dim.Render(num),
				title,
				styles.Muted.Render(artist))
		}

		lines = append(lines, line)
	}

	// Show "more" indicator
	if end < len(tracks) {
		more := styles.Dim.Render(fmt.Sprintf("    ... and %d more", len(tracks)-end))
		lines = append(lines, more)
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// fitTitleArtist truncates a title/artist pair into the available width,
// giving the artist at least a third of the space.
func fitTitleArtist(title, artist string, available int) (string, string) {
	titleLen := runewidth.StringWidth(title)
	artistLen := runewidth.StringWidth(artist)
	if titleLen+artistLen <= available {
		return title, artist
	}

	minArtist := available / 3
	if minArtist < 10 {
		minArtist = 10
	}
	if minArtist > available-10 {
		minArtist = available - 10
	}

	artistSpace := minArtist
	if artistLen < artistSpace {
		artistSpace = artistLen
	}
	titleSpace := available - artistSpace

	return styles.Truncate(title, titleSpace), styles.Truncate(artist, artistSpace)
}
