package tail

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Formatter formats events for output.
type Formatter struct {
	showEmoji     bool
	showTimestamp bool
	template      *template.Template
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithEmoji enables emoji output.
func WithEmoji(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showEmoji = enabled
	}
}

// WithTimestamp enables timestamp output.
func WithTimestamp(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showTimestamp = enabled
	}
}

// WithTemplate sets a custom format template.
func WithTemplate(tmpl string) FormatterOption {
	return func(f *Formatter) {
		if tmpl != "" {
			t, err := template.New("format").Parse(tmpl)
			if err == nil {
				f.template = t
			}
		}
	}
}

// NewFormatter creates a new formatter with the given options.
func NewFormatter(opts ...FormatterOption) *Formatter {
	f := &Formatter{
		showEmoji:     true,
		showTimestamp: false,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format formats an event as a string.
func (f *Formatter) Format(e Event) string {
	if f.template != nil {
		return f.formatTemplate(e)
	}
	return f.formatLine(e)
}

// formatLine formats an event as a simple line.
func (f *Formatter) formatLine(e Event) string {
	var parts []string

	// Timestamp
	if f.showTimestamp {
		parts = append(parts, e.Timestamp.Format("15:04:05"))
	}

	// Emoji
	if f.showEmoji {
		parts = append(parts, eventEmoji(e.Type))
	}

	// Event description
	parts = append(parts, f.eventDescription(e))

	return strings.Join(parts, " ")
}

// formatTemplate formats an event using a custom template.
func (f *Formatter) formatTemplate(e Event) string {
	data := templateData{
		Type:      eventTypeName(e.Type),
		Emoji:     eventEmoji(e.Type),
		Timestamp: e.Timestamp,
		Time:      e.Timestamp.Format("15:04:05"),
	}

	if e.Current != nil && e.Current.CurrentTrack != nil {
		data.Title = e.Current.CurrentTrack.Title
		data.Artist = e.Current.CurrentTrack.Artist
	}

	if e.Current != nil {
		data.Device = e.Current.ActiveDeviceID
		data.QueueIndex = e.Current.QueueIndex
		data.QueueLen = len(e.Current.Queue)
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		return f.formatLine(e)
	}
	return buf.String()
}

type templateData struct {
	Type       string
	Emoji      string
	Timestamp  time.Time
	Time       string
	Title      string
	Artist     string
	Device     string
	QueueIndex int
	QueueLen   int
}

// eventDescription returns a human-readable description of the event.
func (f *Formatter) eventDescription(e Event) string {
	switch e.Type {
	case EventTrackChange:
		if e.Current != nil && e.Current.CurrentTrack != nil {
			return fmt.Sprintf("Now playing: %s - %s",
				e.Current.CurrentTrack.Artist,
				e.Current.CurrentTrack.Title)
		}
		return "Track changed"

	case EventTrackComplete:
		if e.Previous != nil && e.Previous.CurrentTrack != nil {
			return fmt.Sprintf("Finished: %s - %s",
				e.Previous.CurrentTrack.Artist,
				e.Previous.CurrentTrack.Title)
		}
		return "Track completed"

	case EventTrackSkip:
		if e.Previous != nil && e.Previous.CurrentTrack != nil {
			return fmt.Sprintf("Skipped: %s - %s",
				e.Previous.CurrentTrack.Artist,
				e.Previous.CurrentTrack.Title)
		}
		return "Track skipped"

	case EventPause:
		return "Paused"

	case EventResume:
		return "Resumed"

	case EventDeviceChange:
		if e.Current != nil && e.Current.ActiveDeviceID != "" {
			return fmt.Sprintf("Device: %s", e.Current.ActiveDeviceID)
		}
		return "No active device"

	case EventShuffleChange:
		if e.Current != nil && e.Current.ShuffleEnabled {
			return "Shuffle on"
		}
		return "Shuffle off"

	case EventSelection:
		if e.Selected != nil {
			return fmt.Sprintf("Selected: %s - %s",
				e.Selected.Track.Artist,
				e.Selected.Track.Title)
		}
		return "Track selected"

	case EventConnection:
		return fmt.Sprintf("Connection: %s", e.Conn)

	default:
		return "Unknown event"
	}
}

// eventEmoji returns an emoji for the event type.
func eventEmoji(t EventType) string {
	switch t {
	case EventTrackChange:
		return "🎵"
	case EventTrackComplete:
		return "✅"
	case EventTrackSkip:
		return "⏭️"
	case EventPause:
		return "⏸️"
	case EventResume:
		return "▶️"
	case EventDeviceChange:
		return "📱"
	case EventShuffleChange:
		return "🔀"
	case EventSelection:
		return "👆"
	case EventConnection:
		return "🔌"
	default:
		return "❓"
	}
}

// EventName returns the stable string name of an event type, used for the
// template {{.Type}} field and JSON output.
func EventName(t EventType) string {
	return eventTypeName(t)
}

// eventTypeName returns the name of the event type.
func eventTypeName(t EventType) string {
	switch t {
	case EventTrackChange:
		return "track_change"
	case EventTrackComplete:
		return "track_complete"
	case EventTrackSkip:
		return "track_skip"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	case EventDeviceChange:
		return "device_change"
	case EventShuffleChange:
		return "shuffle_change"
	case EventSelection:
		return "selection"
	case EventConnection:
		return "connection"
	default:
		return "unknown"
	}
}
