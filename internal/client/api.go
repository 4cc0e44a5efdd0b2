package client

import (
	"context"

	"github.com/tessro/ensemble/internal/core"
	"github.com/tessro/ensemble/internal/protocol"
)

// Play starts a new playback session from the given context.
func (c *Client) Play(ctx context.Context, req protocol.PlayRequest) (*protocol.PlayResponse, error) {
	var resp protocol.PlayResponse
	if err := c.Post(ctx, "/api/playback/play", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pause pauses playback for every device.
func (c *Client) Pause(ctx context.Context) error {
	return c.Post(ctx, "/api/playback/pause", nil, nil)
}

// Resume continues playback from the paused position.
func (c *Client) Resume(ctx context.Context) error {
	return c.Post(ctx, "/api/playback/resume", nil, nil)
}

// Next advances to the next queue entry.
func (c *Client) Next(ctx context.Context) error {
	return c.Post(ctx, "/api/playback/next", nil, nil)
}

// Prev moves back to the previous queue entry.
func (c *Client) Prev(ctx context.Context) error {
	return c.Post(ctx, "/api/playback/prev", nil, nil)
}

// Seek moves the position within the current track.
func (c *Client) Seek(ctx context.Context, positionMs int64) error {
	return c.Post(ctx, "/api/playback/seek", protocol.SeekRequest{PositionMs: positionMs}, nil)
}

// SetShuffle toggles shuffle for the current context.
func (c *Client) SetShuffle(ctx context.Context, enabled bool) error {
	return c.Post(ctx, "/api/playback/shuffle", protocol.ShuffleRequest{Enabled: enabled}, nil)
}

// GetState fetches the full authoritative playback state.
func (c *Client) GetState(ctx context.Context) (*protocol.State, error) {
	var state protocol.State
	if err := c.Get(ctx, "/api/playback", &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// GetDevices lists the registered devices.
func (c *Client) GetDevices(ctx context.Context) ([]core.Device, error) {
	var devices []core.Device
	if err := c.Get(ctx, "/api/devices", &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// GetHistory returns the recently-started tracks, newest first.
func (c *Client) GetHistory(ctx context.Context) ([]protocol.HistoryEntry, error) {
	var entries []protocol.HistoryEntry
	if err := c.Get(ctx, "/api/history", &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Select announces a track selection to the other clients.
func (c *Client) Select(ctx context.Context, trackID, deviceID string) error {
	return c.Post(ctx, "/api/select", protocol.SelectRequest{
		TrackID:  trackID,
		DeviceID: deviceID,
	}, nil)
}
