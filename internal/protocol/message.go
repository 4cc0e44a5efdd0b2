package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tessro/ensemble/internal/core"
)

// MessageType enumerates every message carried on the push channel. Dispatch
// sites switch over all values; adding a type means touching each switch.
type MessageType string

const (
	// MessagePlaybackState carries the full authoritative playback state.
	MessagePlaybackState MessageType = "playback:state"

	// MessageDevicesUpdated carries the full device list after a change.
	MessageDevicesUpdated MessageType = "devices:updated"

	// MessageTrackSelected is a collaborator-produced selection event; it
	// does not affect playback state.
	MessageTrackSelected MessageType = "track:selected"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessagePlaybackState, MessageDevicesUpdated, MessageTrackSelected:
		return true
	}
	return false
}

// Envelope is the frame for every push-channel message. ServerTime is the
// server clock in unix milliseconds at send; clients use it to compute
// their clock offset.
type Envelope struct {
	Type       MessageType     `json:"type"`
	Data       json.RawMessage `json:"data"`
	ServerTime int64           `json:"server_time"`
}

// NewEnvelope marshals data into an envelope stamped with serverTime.
func NewEnvelope(t MessageType, data interface{}, serverTime time.Time) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Envelope{
		Type:       t,
		Data:       raw,
		ServerTime: serverTime.UnixMilli(),
	}, nil
}

// Registration is the first message a client sends after opening the push
// channel. Re-registering with a known id is the reconnect path.
type Registration struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
}

// State is the playback:state payload and the get_state response. PositionMs
// is interpolated to ServerTime at emission, so a playing client continues
// the interpolation from (PositionMs, ServerTime).
type State struct {
	CurrentTrack   *core.TrackRef    `json:"current_track,omitempty"`
	Queue          []core.TrackRef   `json:"queue"`
	QueueIndex     int               `json:"queue_index"`
	PositionMs     int64             `json:"position_ms"`
	IsPlaying      bool              `json:"is_playing"`
	ActiveDeviceID string            `json:"active_device_id,omitempty"`
	ShuffleEnabled bool              `json:"shuffle_enabled"`
	Context        *core.PlayContext `json:"context,omitempty"`
	ServerTime     int64             `json:"server_time"`
}

// DevicesUpdated is the devices:updated payload.
type DevicesUpdated struct {
	Devices []core.Device `json:"devices"`
}

// TrackSelected is the track:selected payload.
type TrackSelected struct {
	Track    core.TrackRef `json:"track"`
	DeviceID string        `json:"device_id,omitempty"`
}
