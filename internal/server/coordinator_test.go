package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tessro/ensemble/internal/core"
	enserrors "github.com/tessro/ensemble/internal/errors"
	"github.com/tessro/ensemble/internal/protocol"
)

// fakeSource is a queue source returning canned tracks.
type fakeSource struct {
	mu       sync.Mutex
	tracks   []core.TrackRef
	err      error
	calls    []fakeCall
	shuffled bool
}

type fakeCall struct {
	pc      core.PlayContext
	shuffle bool
}

func (f *fakeSource) Resolve(_ context.Context, pc core.PlayContext, shuffle bool) ([]core.TrackRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{pc: pc, shuffle: shuffle})
	f.shuffled = shuffle
	if f.err != nil {
		return nil, f.err
	}
	out := make([]core.TrackRef, len(f.tracks))
	copy(out, f.tracks)
	return out, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// recorder captures broadcasts in order.
type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	Type protocol.MessageType
	Data interface{}
}

func (r *recorder) Broadcast(t protocol.MessageType, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Type: t, Data: data})
}

func (r *recorder) ofType(t protocol.MessageType) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedEvent
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func tracks(n int) []core.TrackRef {
	out := make([]core.TrackRef, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, core.TrackRef{
			ID:         fmt.Sprintf("t%d", i),
			Title:      fmt.Sprintf("Track %d", i),
			DurationMs: 180000,
		})
	}
	return out
}

func newTestCoordinator(t *testing.T, source *fakeSource, opts Options) (*Coordinator, *recorder) {
	t.Helper()
	rec := &recorder{}
	c := NewCoordinator(source, rec, zerolog.Nop(), opts)
	c.Start()
	t.Cleanup(c.Stop)
	return c, rec
}

func playReq(trackID, device string) protocol.PlayRequest {
	return protocol.PlayRequest{
		TrackID:  trackID,
		Context:  core.PlayContext{Kind: core.ContextTrack, TrackID: trackID},
		DeviceID: device,
	}
}

func TestPlayRoundTrip(t *testing.T) {
	source := &fakeSource{tracks: tracks(1)}
	c, rec := newTestCoordinator(t, source, Options{})

	if _, err := c.RegisterDevice("A", "Desktop"); err != nil {
		t.Fatalf("RegisterDevice() error = %v", err)
	}
	rec.reset()

	resp, err := c.Play(context.Background(), playReq("t0", "A"))
	if err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if len(resp.Queue) != 1 || resp.Queue[0].ID != "t0" {
		t.Errorf("Play() queue = %v, want [t0]", resp.Queue)
	}
	if resp.QueueIndex != 0 || resp.ActiveDeviceID != "A" {
		t.Errorf("Play() = %+v, want index 0, active A", resp)
	}

	state := c.State()
	if !state.IsPlaying {
		t.Error("get_state after play should report playing")
	}
	if state.PositionMs > 1000 {
		t.Errorf("position = %dms, want near 0", state.PositionMs)
	}
	if state.QueueIndex != 0 || state.CurrentTrack == nil || state.CurrentTrack.ID != "t0" {
		t.Errorf("state = %+v, want current track t0", state)
	}

	if got := rec.ofType(protocol.MessagePlaybackState); len(got) != 1 {
		t.Errorf("play emitted %d playback:state broadcasts, want exactly 1", len(got))
	}
}

func TestPlayQueueIndexPointsAtAnchor(t *testing.T) {
	source := &fakeSource{tracks: tracks(10)}
	c, _ := newTestCoordinator(t, source, Options{})
	_, _ = c.RegisterDevice("A", "Desktop")

	req := protocol.PlayRequest{
		TrackID:  "t4",
		Context:  core.PlayContext{Kind: core.ContextPlaylist, PlaylistID: "p1"},
		DeviceID: "A",
	}
	resp, err := c.Play(context.Background(), req)
	if err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if resp.QueueIndex != 4 {
		t.Errorf("queue_index = %d, want 4 (position of anchor)", resp.QueueIndex)
	}
}

func TestPlayUnresolvableContextLeavesStateUntouched(t *testing.T) {
	source := &fakeSource{tracks: tracks(1)}
	c, rec := newTestCoordinator(t, source, Options{})
	_, _ = c.RegisterDevice("A", "Desktop")

	if _, err := c.Play(context.Background(), playReq("t0", "A")); err != nil {
		t.Fatal(err)
	}
	before := c.State()
	rec.reset()

	source.mu.Lock()
	source.err = enserrors.NotFoundf("playlist %q", "deleted")
	source.mu.Unlock()

	_, err := c.Play(context.Background(), protocol.PlayRequest{
		TrackID:  "t0",
		Context:  core.PlayContext{Kind: core.ContextPlaylist, PlaylistID: "deleted"},
		DeviceID: "A",
	})
	if !errors.Is(err, enserrors.ErrNotFound) {
		t.Fatalf("Play() error = %v, want not-found", err)
	}

	after := c.State()
	if after.QueueIndex != before.QueueIndex || after.IsPlaying != before.IsPlaying ||
		len(after.Queue) != len(before.Queue) {
		t.Error("failed play mutated the state")
	}
	if len(rec.events) != 0 {
		t.Errorf("failed play emitted %d broadcasts, want none", len(rec.events))
	}
}

func TestPlayRequiresRegisteredDevice(t *testing.T) {
	source := &fakeSource{tracks: tracks(1)}
	c, _ := newTestCoordinator(t, source, Options{})

	_, err := c.Play(context.Background(), playReq("t0", "ghost"))
	if !errors.Is(err, enserrors.ErrNotFound) {
		t.Errorf("Play() from unregistered device error = %v, want not-found", err)
	}
}

func TestPlayTargetDeviceNotRegistered(t *testing.T) {
	source := &fakeSource{tracks: tracks(1)}
	c, _ := newTestCoordinator(t, source, Options{})
	_, _ = c.RegisterDevice("A", "Desktop")

	req := playReq("t0", "A")
	req.TargetDevice = "kitchen"
	_, err := c.Play(context.Background(), req)
	if !errors.Is(err, enserrors.ErrConflict) {
		t.Errorf("Play() with missing target error = %v, want conflict", err)
	}
}

func TestPlayHandoffToTargetDevice(t *testing.T) {
	source := &fakeSource{tracks: tracks(1)}
	c, _ := newTestCoordinator(t, source, Options{})
	_, _ = c.RegisterDevice("A", "Desktop")
	_, _ = c.RegisterDevice("B", "Phone")

	req := playReq("t0", "A")
	req.TargetDevice = "B"
	resp, err := c.Play(context.Background(), req)
	if err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if resp.ActiveDeviceID != "B" {
		t.Errorf("active device = %q, want B", resp.ActiveDeviceID)
	}

	// At most one active device: the device list must agree.
	active := 0
	for _, d := range c.Devices() {
		if d.IsActive {
			active++
			if d.ID != "B" {
				t.Errorf("active device = %s, want B", d.ID)
			}
		}
	}
	if active != 1 {
		t.Errorf("%d active devices, want exactly 1", active)
	}
}

func TestPauseIsGlobal(t *testing.T) {
	source := &fakeSource{tracks: tracks(1)}
	c, rec := newTestCoordinator(t, source, Options{})
	_, _ = c.RegisterDevice("A", "Desktop")
	_, _ = c.RegisterDevice("B", "Phone")

	if _, err := c.Play(context.Background(), playReq("t0", "A")); err != nil {
		t.Fatal(err)
	}
	rec.reset()

	// Device B pauses while A is the active device.
	if err := c.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}

	events := rec.ofType(protocol.MessagePlaybackState)
	if len(events) != 1 {
		t.Fatalf("pause emitted %d broadcasts, want 1", len(events))
	}
	state := events[0].Data.(protocol.State)
	if state.IsPlaying {
		t.Error("broadcast after pause should show is_playing=false for every device")
	}
}

func TestPausedPositionIsFrozen(t *testing.T) {
	source := &fakeSource{tracks: tracks(1)}
	c, _ := newTestCoordinator(t, source, Options{})
	_, _ = c.RegisterDevice("A", "Desktop")

	_, _ = c.Play(context.Background(), playReq("t0", "A"))
	_ = c.Pause()

	first := c.State().PositionMs
	time.Sleep(30 * time.Millisecond)
	second := c.State().PositionMs
	if first != second {
		t.Errorf("paused position moved from %d to %d", first, second)
	}
}

func TestPauseWithoutSession(t *testing.T) {
	source := &fakeSource{}
	c, rec := newTestCoordinator(t, source, Options{})

	err := c.Pause()
	if !errors.Is(err, enserrors.ErrConflict) {
		t.Errorf("Pause() before play error = %v, want conflict", err)
	}
	if len(rec.events) != 0 {
		t.Error("failed pause must not broadcast")
	}
}

func TestResumeKeepsPosition(t *testing.T) {
	source := &fakeSource{tracks: tracks(1)}
	c, _ := newTestCoordinator(t, source, Options{})
	_, _ = c.RegisterDevice("A", "Desktop")

	_, _ = c.Play(context.Background(), playReq("t0", "A"))
	_ = c.Seek(60000)
	_ = c.Pause()
	_ = c.Resume()

	state := c.State()
	if !state.IsPlaying {
		t.Error("resume should set is_playing")
	}
	if state.PositionMs < 60000 || state.PositionMs > 61000 {
		t.Errorf("position after resume = %d, want ~60000", state.PositionMs)
	}
}

func TestSeekClamps(t *testing.T) {
	source := &fakeSource{tracks: tracks(1)} // 180000ms duration
	c, _ := newTestCoordinator(t, source, Options{})
	_, _ = c.RegisterDevice("A", "Desktop")
	_, _ = c.Play(context.Background(), playReq("t0", "A"))

	tests := []struct {
		name string
		seek int64
		want int64
	}{
		{"in range", 30000, 30000},
		{"past end", 999999, 180000},
		{"negative", -5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_ = c.Pause()
			if err := c.Seek(tt.seek); err != nil {
				t.Fatalf("Seek() error = %v", err)
			}
			if got := c.State().PositionMs; got != tt.want {
				t.Errorf("position = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNextClampsAtQueueEnd(t *testing.T) {
	source := &fakeSource{tracks: tracks(3)}
	c, _ := newTestCoordinator(t, source, Options{})
	_, _ = c.RegisterDevice("A", "Desktop")

	req := protocol.PlayRequest{
		TrackID:  "t2",
		Context:  core.PlayContext{Kind: core.ContextPlaylist, PlaylistID: "p"},
		DeviceID: "A",
	}
	if _, err := c.Play(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	if err := c.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if got := c.State().QueueIndex; got != 2 {
		t.Errorf("queue_index after next at end = %d, want 2 (clamped)", got)
	}
}

func TestNextWrapsWhenConfigured(t *testing.T) {
	source := &fakeSource{tracks: tracks(3)}
	c, _ := newTestCoordinator(t, source, Options{WrapQueue: true})
	_, _ = c.RegisterDevice("A", "Desktop")

	req := protocol.PlayRequest{
		TrackID:  "t2",
		Context:  core.PlayContext{Kind: core.ContextPlaylist, PlaylistID: "p"},
		DeviceID: "A",
	}
	_, _ = c.Play(context.Background(), req)

	_ = c.Next()
	if got := c.State().QueueIndex; got != 0 {
		t.Errorf("queue_index after wrap = %d, want 0", got)
	}
}

func TestPrevResetsPosition(t *testing.T) {
	source := &fakeSource{tracks: tracks(3)}
	c, _ := newTestCoordinator(t, source, Options{})
	_, _ = c.RegisterDevice("A", "Desktop")

	req := protocol.PlayRequest{
		TrackID:  "t1",
		Context:  core.PlayContext{Kind: core.ContextPlaylist, PlaylistID: "p"},
		DeviceID: "A",
	}
	_, _ = c.Play(context.Background(), req)
	_ = c.Seek(90000)

	if err := c.Prev(); err != nil {
		t.Fatal(err)
	}
	state := c.State()
	if state.QueueIndex != 0 {
		t.Errorf("queue_index = %d, want 0", state.QueueIndex)
	}
	if state.PositionMs > 1000 {
		t.Errorf("position after prev = %d, want reset to 0", state.PositionMs)
	}
}

func TestShuffleToggleReanchorsAndResets(t *testing.T) {
	source := &fakeSource{tracks: tracks(5)}
	c, _ := newTestCoordinator(t, source, Options{})
	_, _ = c.RegisterDevice("A", "Desktop")

	req := protocol.PlayRequest{
		TrackID:  "t3",
		Context:  core.PlayContext{Kind: core.ContextPlaylist, PlaylistID: "p"},
		DeviceID: "A",
	}
	_, _ = c.Play(context.Background(), req)

	if err := c.SetShuffle(context.Background(), true); err != nil {
		t.Fatalf("SetShuffle() error = %v", err)
	}

	state := c.State()
	if !state.ShuffleEnabled {
		t.Error("shuffle flag not set")
	}
	if state.QueueIndex != 0 {
		t.Errorf("queue_index after shuffle toggle = %d, want 0", state.QueueIndex)
	}

	source.mu.Lock()
	last := source.calls[len(source.calls)-1]
	source.mu.Unlock()
	if !last.shuffle {
		t.Error("queue source not re-invoked with shuffle=true")
	}
	if last.pc.TrackID != "t3" {
		t.Errorf("re-resolve anchored at %q, want current track t3", last.pc.TrackID)
	}
}

func TestOperationsAreLinearized(t *testing.T) {
	source := &fakeSource{tracks: tracks(1)}
	c, _ := newTestCoordinator(t, source, Options{})
	_, _ = c.RegisterDevice("A", "Desktop")
	_, _ = c.Play(context.Background(), playReq("t0", "A"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = c.Pause()
		}()
		go func() {
			defer wg.Done()
			_ = c.Resume()
		}()
	}
	wg.Wait()

	// Whatever won, the state must be internally consistent.
	state := c.State()
	if state.IsPlaying && state.ActiveDeviceID == "" {
		t.Error("playing with no active device")
	}
	if state.QueueIndex < 0 || state.QueueIndex >= len(state.Queue) {
		t.Errorf("queue_index %d out of bounds", state.QueueIndex)
	}
}

func TestHistoryRecordsStarts(t *testing.T) {
	source := &fakeSource{tracks: tracks(3)}
	c, _ := newTestCoordinator(t, source, Options{})
	_, _ = c.RegisterDevice("A", "Desktop")

	req := protocol.PlayRequest{
		TrackID:  "t0",
		Context:  core.PlayContext{Kind: core.ContextPlaylist, PlaylistID: "p"},
		DeviceID: "A",
	}
	_, _ = c.Play(context.Background(), req)
	_ = c.Next()
	_ = c.Next()

	history := c.History()
	if len(history) != 3 {
		t.Fatalf("history has %d entries, want 3", len(history))
	}
	// Newest first.
	if history[0].Track.ID != "t2" || history[2].Track.ID != "t0" {
		t.Errorf("history order = [%s %s %s], want [t2 t1 t0]",
			history[0].Track.ID, history[1].Track.ID, history[2].Track.ID)
	}
}
