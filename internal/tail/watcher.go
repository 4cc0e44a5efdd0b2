package tail

import (
	"context"
	"time"

	"github.com/tessro/ensemble/internal/client"
	"github.com/tessro/ensemble/internal/protocol"
)

// EventType represents the type of playback event.
type EventType int

const (
	EventTrackChange EventType = iota
	EventTrackComplete
	EventTrackSkip
	EventPause
	EventResume
	EventDeviceChange
	EventShuffleChange
	EventSelection
	EventConnection
)

// Event represents a playback state change observed on the push channel.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Previous  *protocol.State
	Current   *protocol.State
	Selected  *protocol.TrackSelected
	Conn      client.ConnState
}

// Watcher turns the agent's broadcast stream into playback events. Unlike a
// poller it never misses a transition: every state the coordinator emits is
// diffed against its predecessor.
type Watcher struct {
	events chan Event
}

// NewWatcher creates a broadcast watcher.
func NewWatcher() *Watcher {
	return &Watcher{events: make(chan Event, 16)}
}

// Events returns the channel of playback events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Run consumes agent events until the context is cancelled or the source
// closes.
func (w *Watcher) Run(ctx context.Context, source <-chan client.Event) error {
	defer close(w.events)

	var prev *protocol.State
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-source:
			if !ok {
				return nil
			}
			now := time.Now()
			switch ev.Kind {
			case client.EventStateChanged:
				for _, e := range diffStates(prev, ev.State, now) {
					w.emit(e)
				}
				prev = ev.State
			case client.EventTrackSelected:
				w.emit(Event{Type: EventSelection, Timestamp: now, Selected: ev.Selected, Current: prev})
			case client.EventConnChanged:
				w.emit(Event{Type: EventConnection, Timestamp: now, Conn: ev.Conn, Current: prev})
			}
		}
	}
}

func (w *Watcher) emit(e Event) {
	select {
	case w.events <- e:
	default:
		// Drop event if channel is full
	}
}

// diffStates compares two states and returns the events between them.
func diffStates(prev, curr *protocol.State, now time.Time) []Event {
	if curr == nil {
		return nil
	}
	if prev == nil {
		if curr.CurrentTrack != nil {
			return []Event{{Type: EventTrackChange, Timestamp: now, Current: curr}}
		}
		return nil
	}

	var events []Event

	if trackChanged(prev, curr) {
		if wasCompleted(prev) {
			events = append(events, Event{Type: EventTrackComplete, Timestamp: now, Previous: prev, Current: curr})
		} else if prev.CurrentTrack != nil {
			events = append(events, Event{Type: EventTrackSkip, Timestamp: now, Previous: prev, Current: curr})
		}
		if curr.CurrentTrack != nil {
			events = append(events, Event{Type: EventTrackChange, Timestamp: now, Previous: prev, Current: curr})
		}
	}

	if prev.IsPlaying && !curr.IsPlaying {
		events = append(events, Event{Type: EventPause, Timestamp: now, Previous: prev, Current: curr})
	} else if !prev.IsPlaying && curr.IsPlaying {
		events = append(events, Event{Type: EventResume, Timestamp: now, Previous: prev, Current: curr})
	}

	if prev.ActiveDeviceID != curr.ActiveDeviceID {
		events = append(events, Event{Type: EventDeviceChange, Timestamp: now, Previous: prev, Current: curr})
	}

	if prev.ShuffleEnabled != curr.ShuffleEnabled {
		events = append(events, Event{Type: EventShuffleChange, Timestamp: now, Previous: prev, Current: curr})
	}

	return events
}

// trackChanged returns true if the track changed.
func trackChanged(prev, curr *protocol.State) bool {
	if prev.CurrentTrack == nil && curr.CurrentTrack == nil {
		return false
	}
	if prev.CurrentTrack == nil || curr.CurrentTrack == nil {
		return true
	}
	return prev.CurrentTrack.ID != curr.CurrentTrack.ID
}

// wasCompleted returns true if the previous track likely finished naturally.
func wasCompleted(state *protocol.State) bool {
	if state.CurrentTrack == nil || state.CurrentTrack.DurationMs == 0 {
		return false
	}
	// Consider completed if position is >= 95% of duration
	threshold := float64(state.CurrentTrack.DurationMs) * 0.95
	return float64(state.PositionMs) >= threshold
}
