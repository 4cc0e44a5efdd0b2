package server

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tessro/ensemble/internal/core"
	"github.com/tessro/ensemble/internal/errors"
	"github.com/tessro/ensemble/internal/protocol"
)

// historySize bounds the recently-started ring.
const historySize = 20

// Broadcaster fans a message out to every connected client.
type Broadcaster interface {
	Broadcast(t protocol.MessageType, data interface{})
}

// Coordinator owns the single authoritative playback state and the device
// registry, and serializes every mutation through one writer goroutine.
// Each operation fully completes — mutate, then emit exactly one broadcast —
// before the next operation begins, so concurrent control requests from
// different devices never interleave.
type Coordinator struct {
	source      core.QueueSource
	broadcaster Broadcaster
	logger      zerolog.Logger

	gracePeriod time.Duration
	wrapQueue   bool
	now         func() time.Time

	ops  chan func()
	quit chan struct{}
	done chan struct{}

	// Everything below is owned by the run loop and must only be touched
	// from inside an op.
	state   core.PlaybackState
	started bool
	devices *registry
	history []protocol.HistoryEntry
}

// Options configures a Coordinator.
type Options struct {
	// GracePeriod is how long a disconnected device may reconnect before
	// being forgotten. Defaults to 30 seconds.
	GracePeriod time.Duration

	// WrapQueue makes next/prev wrap around the queue bounds instead of
	// clamping.
	WrapQueue bool

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewCoordinator creates a coordinator. Call Start before submitting
// operations and Stop when done.
func NewCoordinator(source core.QueueSource, b Broadcaster, logger zerolog.Logger, opts Options) *Coordinator {
	if opts.GracePeriod == 0 {
		opts.GracePeriod = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		source:      source,
		broadcaster: b,
		logger:      logger.With().Str("component", "coordinator").Logger(),
		gracePeriod: opts.GracePeriod,
		wrapQueue:   opts.WrapQueue,
		now:         opts.Now,
		ops:         make(chan func()),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		devices:     newRegistry(),
	}
}

// Start launches the writer goroutine.
func (c *Coordinator) Start() {
	go c.run()
}

// Stop shuts the writer goroutine down and cancels all pending grace
// timers. Operations submitted after Stop fail.
func (c *Coordinator) Stop() {
	close(c.quit)
	<-c.done
	c.devices.stopAll()
}

func (c *Coordinator) run() {
	defer close(c.done)
	for {
		select {
		case fn := <-c.ops:
			fn()
		case <-c.quit:
			return
		}
	}
}

// do runs fn on the writer goroutine and waits for it to finish.
func (c *Coordinator) do(fn func() error) error {
	reply := make(chan error, 1)
	select {
	case c.ops <- func() { reply <- fn() }:
		return <-reply
	case <-c.quit:
		return errors.Conflictf("coordinator is shutting down")
	}
}

// Play resolves the context into a queue and starts a new session. On any
// error the state is untouched and nothing is broadcast.
func (c *Coordinator) Play(ctx context.Context, req protocol.PlayRequest) (*protocol.PlayResponse, error) {
	if req.TrackID == "" {
		return nil, errors.Validationf("play requires track_id")
	}
	if err := req.Context.Validate(); err != nil {
		return nil, err
	}

	var resp *protocol.PlayResponse
	err := c.do(func() error {
		if _, ok := c.devices.get(req.DeviceID); !ok {
			return errors.NotFoundf("device %q is not registered", req.DeviceID)
		}
		active := req.DeviceID
		if req.TargetDevice != "" {
			if _, ok := c.devices.get(req.TargetDevice); !ok {
				return errors.Conflictf("target device %q is not registered", req.TargetDevice)
			}
			active = req.TargetDevice
		}

		pc := req.Context.WithAnchor(req.TrackID)
		tracks, err := c.source.Resolve(ctx, pc, req.Shuffle)
		if err != nil {
			return err
		}
		if len(tracks) > core.MaxQueueSize {
			return fmt.Errorf("queue source returned %d tracks, cap is %d", len(tracks), core.MaxQueueSize)
		}

		queue := core.Queue{Tracks: tracks}
		idx := queue.IndexOf(req.TrackID)
		if idx < 0 {
			return errors.NotFoundf("track %q is not in the resolved queue", req.TrackID)
		}

		now := c.now()
		queue.CurrentIndex = idx
		c.state = core.PlaybackState{
			ActiveDeviceID: active,
			Queue:          queue,
			TrackStartedAt: &now,
			PositionMs:     0,
			IsPlaying:      true,
			ShuffleEnabled: req.Shuffle,
			Context:        &pc,
		}
		c.started = true
		c.recordHistory()

		c.logger.Info().
			Str("track", req.TrackID).
			Str("context", string(pc.Kind)).
			Str("device", active).
			Int("queue_len", queue.Len()).
			Msg("Playback started")

		c.broadcastState()
		resp = &protocol.PlayResponse{
			Queue:          queue.Tracks,
			QueueIndex:     idx,
			ActiveDeviceID: active,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Pause freezes the playback position.
func (c *Coordinator) Pause() error {
	return c.do(func() error {
		if err := c.requireSession(); err != nil {
			return err
		}
		c.state.PositionMs = c.state.InterpolatedPosition(c.now())
		c.state.TrackStartedAt = nil
		c.state.IsPlaying = false
		c.broadcastState()
		return nil
	})
}

// Resume continues playback from the frozen position.
func (c *Coordinator) Resume() error {
	return c.do(func() error {
		if err := c.requireSession(); err != nil {
			return err
		}
		now := c.now()
		c.state.TrackStartedAt = &now
		c.state.IsPlaying = true
		c.broadcastState()
		return nil
	})
}

// Seek moves the position within the current track, clamped to its bounds.
func (c *Coordinator) Seek(positionMs int64) error {
	return c.do(func() error {
		if err := c.requireSession(); err != nil {
			return err
		}
		track := c.state.CurrentTrack()
		if positionMs < 0 {
			positionMs = 0
		}
		if track != nil && positionMs > track.DurationMs {
			positionMs = track.DurationMs
		}
		c.state.PositionMs = positionMs
		if c.state.IsPlaying {
			now := c.now()
			c.state.TrackStartedAt = &now
		} else {
			c.state.TrackStartedAt = nil
		}
		c.broadcastState()
		return nil
	})
}

// Next advances the queue position.
func (c *Coordinator) Next() error {
	return c.step(1)
}

// Prev moves the queue position back.
func (c *Coordinator) Prev() error {
	return c.step(-1)
}

func (c *Coordinator) step(delta int) error {
	return c.do(func() error {
		if err := c.requireSession(); err != nil {
			return err
		}
		n := c.state.Queue.Len()
		idx := c.state.Queue.CurrentIndex + delta
		if c.wrapQueue {
			idx = ((idx % n) + n) % n
		} else {
			if idx < 0 {
				idx = 0
			}
			if idx > n-1 {
				idx = n - 1
			}
		}
		c.state.Queue.CurrentIndex = idx
		c.state.PositionMs = 0
		if c.state.IsPlaying {
			now := c.now()
			c.state.TrackStartedAt = &now
		} else {
			c.state.TrackStartedAt = nil
		}
		c.recordHistory()
		c.broadcastState()
		return nil
	})
}

// SetShuffle re-resolves the current context with the new shuffle flag,
// anchored at the current track. The queue index resets to 0; the anchor
// is placed first so the playing track carries over.
func (c *Coordinator) SetShuffle(ctx context.Context, enabled bool) error {
	return c.do(func() error {
		if err := c.requireSession(); err != nil {
			return err
		}
		if c.state.Context == nil {
			return errors.Conflictf("no playback context to reshuffle")
		}

		pc := *c.state.Context
		if track := c.state.CurrentTrack(); track != nil {
			pc = pc.WithAnchor(track.ID)
		}
		tracks, err := c.source.Resolve(ctx, pc, enabled)
		if err != nil {
			return err
		}

		c.state.Queue = core.Queue{Tracks: tracks, CurrentIndex: 0}
		c.state.ShuffleEnabled = enabled
		c.state.Context = &pc
		c.broadcastState()
		return nil
	})
}

// requireSession rejects transport operations before the first play.
func (c *Coordinator) requireSession() error {
	if !c.started || c.state.Queue.IsEmpty() {
		return errors.Conflictf("no active playback session")
	}
	return nil
}

// State returns the current authoritative state, position interpolated to
// the server clock.
func (c *Coordinator) State() protocol.State {
	var snap protocol.State
	_ = c.do(func() error {
		snap = c.snapshot()
		return nil
	})
	return snap
}

// History returns the recently-started tracks, newest first.
func (c *Coordinator) History() []protocol.HistoryEntry {
	var entries []protocol.HistoryEntry
	_ = c.do(func() error {
		entries = make([]protocol.HistoryEntry, len(c.history))
		for i, e := range c.history {
			entries[len(c.history)-1-i] = e
		}
		return nil
	})
	return entries
}

// snapshot must be called from inside an op.
func (c *Coordinator) snapshot() protocol.State {
	now := c.now()
	queue := make([]core.TrackRef, len(c.state.Queue.Tracks))
	copy(queue, c.state.Queue.Tracks)
	return protocol.State{
		CurrentTrack:   c.state.CurrentTrack(),
		Queue:          queue,
		QueueIndex:     c.state.Queue.CurrentIndex,
		PositionMs:     c.state.InterpolatedPosition(now),
		IsPlaying:      c.state.IsPlaying,
		ActiveDeviceID: c.state.ActiveDeviceID,
		ShuffleEnabled: c.state.ShuffleEnabled,
		Context:        c.state.Context,
		ServerTime:     now.UnixMilli(),
	}
}

// broadcastState must be called from inside an op, exactly once per
// successful mutation.
func (c *Coordinator) broadcastState() {
	c.broadcaster.Broadcast(protocol.MessagePlaybackState, c.snapshot())
}

// recordHistory appends the current track unless it is already the most
// recent entry. Must be called from inside an op.
func (c *Coordinator) recordHistory() {
	track := c.state.CurrentTrack()
	if track == nil {
		return
	}
	if n := len(c.history); n > 0 && c.history[n-1].Track.ID == track.ID {
		return
	}
	c.history = append(c.history, protocol.HistoryEntry{Track: *track, StartedAt: c.now()})
	if len(c.history) > historySize {
		c.history = c.history[len(c.history)-historySize:]
	}
}
