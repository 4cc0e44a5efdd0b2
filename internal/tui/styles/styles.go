package styles

import (
	catppuccin "github.com/catppuccin/go"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Colors - defaults come from the catppuccin mocha palette
var (
	// Primary colors
	Primary   = lipgloss.Color(catppuccin.Mocha.Mauve().Hex)
	Secondary = lipgloss.Color(catppuccin.Mocha.Green().Hex)
	Accent    = lipgloss.Color(catppuccin.Mocha.Peach().Hex)

	// Status colors
	Success = lipgloss.Color(catppuccin.Mocha.Green().Hex)
	Warning = lipgloss.Color(catppuccin.Mocha.Yellow().Hex)
	Error   = lipgloss.Color(catppuccin.Mocha.Red().Hex)
	Info    = lipgloss.Color(catppuccin.Mocha.Blue().Hex)

	// Neutral colors
	Background = lipgloss.Color(catppuccin.Mocha.Base().Hex)
	Surface    = lipgloss.Color(catppuccin.Mocha.Surface0().Hex)
	Border     = lipgloss.Color(catppuccin.Mocha.Surface1().Hex)
	Text       = lipgloss.Color(catppuccin.Mocha.Text().Hex)
	TextMuted  = lipgloss.Color(catppuccin.Mocha.Subtext0().Hex)
	TextDim    = lipgloss.Color(catppuccin.Mocha.Overlay0().Hex)
)

// SetTheme switches the palette. "light" uses latte, everything else mocha.
func SetTheme(name string) {
	var flavor catppuccin.Flavour = catppuccin.Mocha
	if name == "light" {
		flavor = catppuccin.Latte
	}

	Primary = lipgloss.Color(flavor.Mauve().Hex)
	Secondary = lipgloss.Color(flavor.Green().Hex)
	Accent = lipgloss.Color(flavor.Peach().Hex)
	Success = lipgloss.Color(flavor.Green().Hex)
	Warning = lipgloss.Color(flavor.Yellow().Hex)
	Error = lipgloss.Color(flavor.Red().Hex)
	Info = lipgloss.Color(flavor.Blue().Hex)
	Background = lipgloss.Color(flavor.Base().Hex)
	Surface = lipgloss.Color(flavor.Surface0().Hex)
	Border = lipgloss.Color(flavor.Surface1().Hex)
	Text = lipgloss.Color(flavor.Text().Hex)
	TextMuted = lipgloss.Color(flavor.Subtext0().Hex)
	TextDim = lipgloss.Color(flavor.Overlay0().Hex)

	rebuildStyles()
}

// Text styles
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Text)

	Subtitle = lipgloss.NewStyle().
			Foreground(TextMuted)

	Label = lipgloss.NewStyle().
		Foreground(TextDim)

	Highlight = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

	Muted = lipgloss.NewStyle().
		Foreground(TextMuted)

	Dim = lipgloss.NewStyle().
		Foreground(TextDim)

	Playing = lipgloss.NewStyle().
		Foreground(Success)

	Paused = lipgloss.NewStyle().
		Foreground(Warning)
)

// Border styles
var (
	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Border)

	FocusedBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary)
)

func rebuildStyles() {
	Title = Title.Foreground(Text)
	Subtitle = Subtitle.Foreground(TextMuted)
	Label = Label.Foreground(TextDim)
	Highlight = Highlight.Foreground(Primary)
	Muted = Muted.Foreground(TextMuted)
	Dim = Dim.Foreground(TextDim)
	Playing = Playing.Foreground(Success)
	Paused = Paused.Foreground(Warning)
	BorderStyle = BorderStyle.BorderForeground(Border)
	FocusedBorder = FocusedBorder.BorderForeground(Primary)
}

// Panel creates a styled panel with optional focus
func Panel(focused bool) lipgloss.Style {
	if focused {
		return FocusedBorder.Padding(0, 1)
	}
	return BorderStyle.Padding(0, 1)
}

// PanelTitle creates a styled panel title
func PanelTitle(title string, focused bool) string {
	style := Label
	if focused {
		style = Highlight
	}
	return style.Render(" " + title + " ")
}

// ProgressBar creates a progress bar string
func ProgressBar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	filledStyle := lipgloss.NewStyle().Foreground(Primary)
	emptyStyle := lipgloss.NewStyle().Foreground(Border)

	return filledStyle.Render(Repeat("━", filled)) +
		emptyStyle.Render(Repeat("─", width-filled))
}

// StatusIcon returns an icon for playback status
func StatusIcon(playing bool) string {
	if playing {
		return Playing.Render("▶")
	}
	return Paused.Render("⏸")
}

// Truncate shortens a string to the given display width, rune-aware.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= max {
		return s
	}
	if max <= 3 {
		return runewidth.Truncate(s, max, "")
	}
	return runewidth.Truncate(s, max, "...")
}

// Repeat repeats a string n times
func Repeat(s string, n int) string {
	result := ""
	for i := 0; i < n; i++ {
		result += s
	}
	return result
}
