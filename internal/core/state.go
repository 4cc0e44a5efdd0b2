package core

import "time"

// PlaybackState is the authoritative description of what is playing, where
// in the track, and which device is producing sound. There is exactly one
// per coordinator process; it is only ever mutated by named transitions.
//
// When IsPlaying is true, TrackStartedAt anchors the interpolation clock and
// PositionMs holds the position at that anchor. When IsPlaying is false,
// TrackStartedAt is nil and PositionMs holds the frozen position.
type PlaybackState struct {
	ActiveDeviceID string       `json:"active_device_id,omitempty"`
	Queue          Queue        `json:"queue"`
	TrackStartedAt *time.Time   `json:"track_started_at,omitempty"`
	PositionMs     int64        `json:"position_ms"`
	IsPlaying      bool         `json:"is_playing"`
	ShuffleEnabled bool         `json:"shuffle_enabled"`
	Context        *PlayContext `json:"context,omitempty"`
}

// CurrentTrack returns the track at the queue position, or nil.
func (s *PlaybackState) CurrentTrack() *TrackRef {
	if s == nil {
		return nil
	}
	return s.Queue.Current()
}

// InterpolatedPosition estimates the playback position at the given instant.
// For a paused state this is constant regardless of now.
func (s *PlaybackState) InterpolatedPosition(now time.Time) int64 {
	if s == nil {
		return 0
	}
	if !s.IsPlaying || s.TrackStartedAt == nil {
		return s.PositionMs
	}
	pos := s.PositionMs + now.Sub(*s.TrackStartedAt).Milliseconds()
	if track := s.CurrentTrack(); track != nil && pos > track.DurationMs {
		pos = track.DurationMs
	}
	if pos < 0 {
		pos = 0
	}
	return pos
}
