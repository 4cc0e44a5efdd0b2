package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/rs/zerolog"

	"github.com/tessro/ensemble/internal/core"
	"github.com/tessro/ensemble/internal/protocol"
)

const (
	// Reconnect backoff bounds.
	reconnectBase = time.Second
	reconnectCap  = 30 * time.Second

	eventBuffer = 64
)

// ConnState is the agent's connection lifecycle state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateSynced
	StateReconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSynced:
		return "synced"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// EventKind discriminates agent events.
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventDevicesUpdated
	EventTrackSelected
	EventConnChanged
)

// Event is something the agent observed: a broadcast from the coordinator
// or a change in its own connection state.
type Event struct {
	Kind     EventKind
	State    *protocol.State
	Devices  []core.Device
	Selected *protocol.TrackSelected
	Conn     ConnState
}

// outputProgram is what the agent last told the audio output to do. Hashed
// to skip reprogramming when a broadcast changes nothing the output cares
// about. Position is tracked separately through positionBasis, because it
// advances on its own while playing.
type outputProgram struct {
	TrackID   string
	IsPlaying bool
}

// positionBasis is the position reference the output was last programmed
// with. Projecting it forward on the server clock tells natural progress
// apart from a seek carried by a later broadcast.
type positionBasis struct {
	positionMs int64
	serverTime int64
	playing    bool
}

// at projects the basis to a server-clock instant.
func (b positionBasis) at(serverNowMs int64) int64 {
	pos := b.positionMs
	if b.playing {
		pos += serverNowMs - b.serverTime
	}
	return pos
}

// seekToleranceMs is how far a broadcast position may diverge from the
// projected one before the output is repositioned. Covers network latency
// and clock-offset jitter.
const seekToleranceMs = 500

// Agent keeps one device in sync with the coordinator. It maintains the
// push channel, mirrors the authoritative state, computes the clock offset
// from envelope timestamps, and drives the device's audio output whenever
// this device is the active one.
type Agent struct {
	client *Client
	guard  *Guard
	logger zerolog.Logger

	deviceID   string
	deviceName string

	events chan Event

	mu            sync.RWMutex
	conn          ConnState
	state         *protocol.State
	clockOffsetMs int64
	lastHash      uint64
	lastBasis     positionBasis
	lease         *Lease
	sessionSynced bool
}

// NewAgent creates a sync agent for a device. The guard may be nil for
// control-only clients that never produce audio.
func NewAgent(c *Client, guard *Guard, deviceID, deviceName string, logger zerolog.Logger) *Agent {
	return &Agent{
		client:     c,
		guard:      guard,
		logger:     logger.With().Str("component", "agent").Str("device", deviceID).Logger(),
		deviceID:   deviceID,
		deviceName: deviceName,
		events:     make(chan Event, eventBuffer),
		conn:       StateDisconnected,
	}
}

// Events delivers broadcasts and connection changes, in arrival order. The
// channel is buffered; if nobody drains it, events are dropped rather than
// stalling the agent.
func (a *Agent) Events() <-chan Event {
	return a.events
}

// Run connects and keeps the device synced until the context is cancelled.
// Lost connections are retried with capped exponential backoff; each
// successful reconnect re-registers and refetches the full state, so missed
// broadcasts are harmless.
func (a *Agent) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			a.setConn(StateDisconnected)
			return ctx.Err()
		}

		a.setConn(StateConnecting)
		err := a.session(ctx)
		if ctx.Err() != nil {
			a.setConn(StateDisconnected)
			return ctx.Err()
		}

		a.logger.Warn().Err(err).Msg("Connection lost")
		a.setConn(StateReconnecting)

		// A session that lasted long enough to sync resets the backoff.
		if a.synced() {
			attempt = 0
		}

		attempt++
		wait := backoffWait(attempt)
		select {
		case <-ctx.Done():
			a.setConn(StateDisconnected)
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// session runs one connection: register, fetch state, then consume
// broadcasts until the socket dies.
func (a *Agent) session(ctx context.Context) error {
	a.mu.Lock()
	a.sessionSynced = false
	a.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, a.client.WSURL(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	go func() {
		<-ctx.Done()
		_ = ws.Close()
	}()

	if err := ws.WriteJSON(protocol.Registration{DeviceID: a.deviceID, Name: a.deviceName}); err != nil {
		return err
	}

	// Full-state fetch covers everything broadcast before we subscribed.
	state, err := a.client.GetState(ctx)
	if err != nil {
		return err
	}
	a.applyState(state, time.Now())
	a.setConn(StateSynced)
	a.mu.Lock()
	a.sessionSynced = true
	a.mu.Unlock()
	a.logger.Info().Msg("Synced with coordinator")

	for {
		var env protocol.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			return err
		}
		a.handle(env, time.Now())
	}
}

// handle dispatches one envelope. The switch is exhaustive over the
// protocol's message types; unknown types are logged and skipped so newer
// coordinators stay compatible.
func (a *Agent) handle(env protocol.Envelope, now time.Time) {
	a.mu.Lock()
	a.clockOffsetMs = env.ServerTime - now.UnixMilli()
	a.mu.Unlock()

	switch env.Type {
	case protocol.MessagePlaybackState:
		var state protocol.State
		if err := json.Unmarshal(env.Data, &state); err != nil {
			a.logger.Warn().Err(err).Msg("Bad playback:state payload")
			return
		}
		a.applyState(&state, now)

	case protocol.MessageDevicesUpdated:
		var upd protocol.DevicesUpdated
		if err := json.Unmarshal(env.Data, &upd); err != nil {
			a.logger.Warn().Err(err).Msg("Bad devices:updated payload")
			return
		}
		a.emit(Event{Kind: EventDevicesUpdated, Devices: upd.Devices})

	case protocol.MessageTrackSelected:
		var sel protocol.TrackSelected
		if err := json.Unmarshal(env.Data, &sel); err != nil {
			a.logger.Warn().Err(err).Msg("Bad track:selected payload")
			return
		}
		a.emit(Event{Kind: EventTrackSelected, Selected: &sel})

	default:
		a.logger.Debug().Str("type", string(env.Type)).Msg("Ignoring unknown message type")
	}
}

// applyState adopts a new authoritative state and reprograms the audio
// output if this device's role or track changed.
func (a *Agent) applyState(state *protocol.State, now time.Time) {
	a.mu.Lock()
	a.state = state
	a.clockOffsetMs = state.ServerTime - now.UnixMilli()
	a.mu.Unlock()

	a.program(state, now)
	a.emit(Event{Kind: EventStateChanged, State: state})
}

// program drives the audio output. Only the active device produces audio;
// everyone else keeps their output stopped.
func (a *Agent) program(state *protocol.State, now time.Time) {
	if a.guard == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if state.ActiveDeviceID != a.deviceID || state.CurrentTrack == nil {
		if a.lease != nil {
			a.dropLease()
			a.logger.Info().Msg("No longer the active device, audio stopped")
		}
		return
	}

	position := interpolate(state, a.clockOffsetMs, now)
	basis := positionBasis{
		positionMs: state.PositionMs,
		serverTime: state.ServerTime,
		playing:    state.IsPlaying,
	}

	prog := outputProgram{
		TrackID:   state.CurrentTrack.ID,
		IsPlaying: state.IsPlaying,
	}
	hash, err := hashstructure.Hash(prog, hashstructure.FormatV2, nil)
	if err == nil && a.lease != nil && hash == a.lastHash {
		// Same track, same play state. The broadcast may still carry a
		// seek: compare its position against where the last program would
		// have advanced to by now.
		serverNow := now.UnixMilli() + a.clockOffsetMs
		expected := a.lastBasis.at(serverNow)
		if expected < 0 {
			expected = 0
		}
		if d := state.CurrentTrack.DurationMs; expected > d {
			expected = d
		}
		if diff := position - expected; diff > seekToleranceMs || diff < -seekToleranceMs {
			if err := a.lease.Seek(position); err != nil {
				a.logger.Warn().Err(err).Msg("Output seek failed")
				a.dropLease()
				return
			}
			a.lastBasis = basis
		}
		return
	}

	if a.lease == nil {
		a.lease = a.guard.Acquire(a.deviceID)
	}

	if err := a.lease.Load(*state.CurrentTrack, position); err != nil {
		a.logger.Warn().Err(err).Msg("Output load failed")
		a.dropLease()
		return
	}
	var cmdErr error
	if state.IsPlaying {
		cmdErr = a.lease.Play()
	} else {
		cmdErr = a.lease.Pause()
	}
	if cmdErr != nil {
		a.logger.Warn().Err(cmdErr).Msg("Output command failed")
		a.dropLease()
		return
	}
	a.lastHash = hash
	a.lastBasis = basis
}

// dropLease forgets the lease after a failed or finished program so the next
// broadcast re-acquires instead of retrying a revoked lease forever. Must be
// called with mu held.
func (a *Agent) dropLease() {
	if a.lease != nil {
		a.lease.Release()
		a.lease = nil
	}
	a.lastHash = 0
}

// State returns the last adopted playback state, or nil before first sync.
func (a *Agent) State() *protocol.State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Conn returns the current connection state.
func (a *Agent) Conn() ConnState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.conn
}

// ClockOffsetMs returns the estimated server-minus-local clock offset.
func (a *Agent) ClockOffsetMs() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.clockOffsetMs
}

// Position returns the playback position interpolated to now using the
// server clock offset, without any network traffic.
func (a *Agent) Position(now time.Time) int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.state == nil {
		return 0
	}
	return interpolate(a.state, a.clockOffsetMs, now)
}

// interpolate continues a state's position from its emission timestamp. The
// local clock is translated onto the server clock first, so two devices
// with skewed clocks still agree on the position.
func interpolate(state *protocol.State, offsetMs int64, now time.Time) int64 {
	pos := state.PositionMs
	if state.IsPlaying {
		serverNow := now.UnixMilli() + offsetMs
		pos += serverNow - state.ServerTime
	}
	if pos < 0 {
		pos = 0
	}
	if state.CurrentTrack != nil && pos > state.CurrentTrack.DurationMs {
		pos = state.CurrentTrack.DurationMs
	}
	return pos
}

// synced reports whether the most recent session reached Synced.
func (a *Agent) synced() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sessionSynced
}

func (a *Agent) setConn(s ConnState) {
	a.mu.Lock()
	changed := a.conn != s
	a.conn = s
	a.mu.Unlock()
	if changed {
		a.emit(Event{Kind: EventConnChanged, Conn: s})
	}
}

// emit delivers an event without ever blocking the agent.
func (a *Agent) emit(ev Event) {
	select {
	case a.events <- ev:
	default:
		a.logger.Debug().Int("kind", int(ev.Kind)).Msg("Event dropped, consumer is behind")
	}
}

// backoffWait returns the capped exponential reconnect delay for an attempt
// count starting at 1.
func backoffWait(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	wait := reconnectBase << uint(attempt-1)
	if wait > reconnectCap || wait <= 0 {
		wait = reconnectCap
	}
	return wait
}
