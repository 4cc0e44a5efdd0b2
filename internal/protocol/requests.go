package protocol

import (
	"time"

	"github.com/tessro/ensemble/internal/core"
)

// PlayRequest starts a new playback session. DeviceID names the requesting
// device; TargetDevice, when set, becomes the audio producer instead.
type PlayRequest struct {
	TrackID      string           `json:"track_id"`
	Context      core.PlayContext `json:"context"`
	Shuffle      bool             `json:"shuffle"`
	DeviceID     string           `json:"device_id"`
	TargetDevice string           `json:"target_device,omitempty"`
}

// PlayResponse confirms the applied session; the authoritative state still
// arrives via broadcast.
type PlayResponse struct {
	Queue          []core.TrackRef `json:"queue"`
	QueueIndex     int             `json:"queue_index"`
	ActiveDeviceID string          `json:"active_device_id"`
}

// SeekRequest moves the playback position within the current track.
type SeekRequest struct {
	PositionMs int64 `json:"position_ms"`
}

// ShuffleRequest toggles shuffle for the current context.
type ShuffleRequest struct {
	Enabled bool `json:"enabled"`
}

// SelectRequest broadcasts a track:selected event without touching playback.
type SelectRequest struct {
	TrackID  string `json:"track_id"`
	DeviceID string `json:"device_id,omitempty"`
}

// HistoryEntry records a track the coordinator started playing.
type HistoryEntry struct {
	Track     core.TrackRef `json:"track"`
	StartedAt time.Time     `json:"started_at"`
}

// ErrorResponse is the body of any non-2xx control response.
type ErrorResponse struct {
	Error string `json:"error"`
}
