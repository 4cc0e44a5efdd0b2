package client

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tessro/ensemble/internal/core"
	"github.com/tessro/ensemble/internal/protocol"
)

func TestBackoffWait(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{20, 30 * time.Second},
		{0, time.Second},
	}

	for _, tt := range tests {
		if got := backoffWait(tt.attempt); got != tt.want {
			t.Errorf("backoffWait(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestInterpolate(t *testing.T) {
	now := time.Now()
	track := &core.TrackRef{ID: "t1", DurationMs: 200000}

	tests := []struct {
		name     string
		state    protocol.State
		offsetMs int64
		at       time.Time
		want     int64
	}{
		{
			name: "paused holds still",
			state: protocol.State{
				CurrentTrack: track,
				PositionMs:   42000,
				IsPlaying:    false,
				ServerTime:   now.UnixMilli(),
			},
			at:   now.Add(10 * time.Second),
			want: 42000,
		},
		{
			name: "playing advances with time",
			state: protocol.State{
				CurrentTrack: track,
				PositionMs:   42000,
				IsPlaying:    true,
				ServerTime:   now.UnixMilli(),
			},
			at:   now.Add(5 * time.Second),
			want: 47000,
		},
		{
			name: "skewed clock is corrected by the offset",
			state: protocol.State{
				CurrentTrack: track,
				PositionMs:   10000,
				IsPlaying:    true,
				ServerTime:   now.UnixMilli(),
			},
			// Local clock runs 3s behind the server; the offset cancels it.
			offsetMs: 3000,
			at:       now.Add(2 * time.Second),
			want:     15000,
		},
		{
			name: "clamped to track duration",
			state: protocol.State{
				CurrentTrack: track,
				PositionMs:   199000,
				IsPlaying:    true,
				ServerTime:   now.UnixMilli(),
			},
			at:   now.Add(time.Minute),
			want: 200000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := interpolate(&tt.state, tt.offsetMs, tt.at); got != tt.want {
				t.Errorf("interpolate() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAgentProgramsOutputWhenActive(t *testing.T) {
	out := &fakeOutput{}
	guard := NewGuard(out, zerolog.Nop())
	a := NewAgent(New("http://localhost:0", zerolog.Nop()), guard, "desk", "Desktop", zerolog.Nop())

	now := time.Now()
	track := core.TrackRef{ID: "t1", DurationMs: 100000}
	a.applyState(&protocol.State{
		CurrentTrack:   &track,
		Queue:          []core.TrackRef{track},
		ActiveDeviceID: "desk",
		IsPlaying:      true,
		ServerTime:     now.UnixMilli(),
	}, now)

	if len(out.commands) != 2 || out.commands[0] != "load:t1" || out.commands[1] != "play" {
		t.Errorf("commands = %v, want [load:t1 play]", out.commands)
	}
}

func TestAgentSkipsRedundantReprogramming(t *testing.T) {
	out := &fakeOutput{}
	guard := NewGuard(out, zerolog.Nop())
	a := NewAgent(New("http://localhost:0", zerolog.Nop()), guard, "desk", "Desktop", zerolog.Nop())

	now := time.Now()
	track := core.TrackRef{ID: "t1", DurationMs: 100000}
	state := protocol.State{
		CurrentTrack:   &track,
		Queue:          []core.TrackRef{track},
		ActiveDeviceID: "desk",
		IsPlaying:      true,
		ServerTime:     now.UnixMilli(),
	}

	a.applyState(&state, now)
	n := len(out.commands)

	// Same track, still playing, only the position moved: a seek-free
	// broadcast must not reload the track.
	later := state
	later.PositionMs = 5000
	later.ServerTime = now.Add(5 * time.Second).UnixMilli()
	a.applyState(&later, now.Add(5*time.Second))

	if len(out.commands) != n {
		t.Errorf("redundant broadcast reprogrammed the output: %v", out.commands[n:])
	}
}

func TestAgentAppliesSeekBroadcast(t *testing.T) {
	out := &fakeOutput{}
	guard := NewGuard(out, zerolog.Nop())
	a := NewAgent(New("http://localhost:0", zerolog.Nop()), guard, "desk", "Desktop", zerolog.Nop())

	now := time.Now()
	track := core.TrackRef{ID: "t1", DurationMs: 200000}
	state := protocol.State{
		CurrentTrack:   &track,
		Queue:          []core.TrackRef{track},
		ActiveDeviceID: "desk",
		IsPlaying:      true,
		ServerTime:     now.UnixMilli(),
	}
	a.applyState(&state, now)

	// Another device seeks: same track, still playing, but the position
	// jumps far beyond natural progress. The output must reposition.
	seeked := state
	seeked.PositionMs = 120000
	seeked.ServerTime = now.Add(time.Second).UnixMilli()
	a.applyState(&seeked, now.Add(time.Second))

	last := out.commands[len(out.commands)-1]
	if last != "seek:120000" {
		t.Errorf("commands = %v, want trailing seek:120000", out.commands)
	}

	// The repositioned output must not reload the track.
	for _, cmd := range out.commands[2:] {
		if cmd == "load:t1" {
			t.Errorf("seek broadcast reloaded the track: %v", out.commands)
		}
	}
}

func TestAgentSeeksBackward(t *testing.T) {
	out := &fakeOutput{}
	guard := NewGuard(out, zerolog.Nop())
	a := NewAgent(New("http://localhost:0", zerolog.Nop()), guard, "desk", "Desktop", zerolog.Nop())

	now := time.Now()
	track := core.TrackRef{ID: "t1", DurationMs: 200000}
	state := protocol.State{
		CurrentTrack:   &track,
		Queue:          []core.TrackRef{track},
		ActiveDeviceID: "desk",
		IsPlaying:      true,
		PositionMs:     90000,
		ServerTime:     now.UnixMilli(),
	}
	a.applyState(&state, now)

	rewound := state
	rewound.PositionMs = 10000
	rewound.ServerTime = now.Add(time.Second).UnixMilli()
	a.applyState(&rewound, now.Add(time.Second))

	last := out.commands[len(out.commands)-1]
	if last != "seek:10000" {
		t.Errorf("commands = %v, want trailing seek:10000", out.commands)
	}
}

func TestAgentStopsWhenAnotherDeviceBecomesActive(t *testing.T) {
	out := &fakeOutput{}
	guard := NewGuard(out, zerolog.Nop())
	a := NewAgent(New("http://localhost:0", zerolog.Nop()), guard, "desk", "Desktop", zerolog.Nop())

	now := time.Now()
	track := core.TrackRef{ID: "t1", DurationMs: 100000}
	a.applyState(&protocol.State{
		CurrentTrack:   &track,
		ActiveDeviceID: "desk",
		IsPlaying:      true,
		ServerTime:     now.UnixMilli(),
	}, now)

	a.applyState(&protocol.State{
		CurrentTrack:   &track,
		ActiveDeviceID: "phone",
		IsPlaying:      true,
		ServerTime:     now.UnixMilli(),
	}, now)

	last := out.commands[len(out.commands)-1]
	if last != "stop" {
		t.Errorf("commands = %v, want trailing stop after losing the active role", out.commands)
	}
}

func TestAgentReacquiresLeaseAfterRevocation(t *testing.T) {
	out := &fakeOutput{}
	guard := NewGuard(out, zerolog.Nop())
	a := NewAgent(New("http://localhost:0", zerolog.Nop()), guard, "desk", "Desktop", zerolog.Nop())

	now := time.Now()
	t1 := core.TrackRef{ID: "t1", DurationMs: 100000}
	a.applyState(&protocol.State{
		CurrentTrack:   &t1,
		ActiveDeviceID: "desk",
		IsPlaying:      true,
		ServerTime:     now.UnixMilli(),
	}, now)

	// Someone else grabs the output; the agent's lease is now revoked.
	guard.Acquire("intruder")

	// The next broadcast fails against the dead lease, which the agent
	// must drop; the one after that re-acquires and programs the output.
	t2 := core.TrackRef{ID: "t2", DurationMs: 100000}
	next := protocol.State{
		CurrentTrack:   &t2,
		ActiveDeviceID: "desk",
		IsPlaying:      true,
		ServerTime:     now.UnixMilli(),
	}
	a.applyState(&next, now)
	a.applyState(&next, now)

	n := len(out.commands)
	if n < 2 || out.commands[n-2] != "load:t2" || out.commands[n-1] != "play" {
		t.Errorf("commands = %v, want trailing [load:t2 play] after re-acquire", out.commands)
	}
}

func TestAgentWithoutGuardIsControlOnly(t *testing.T) {
	a := NewAgent(New("http://localhost:0", zerolog.Nop()), nil, "ctl", "Control", zerolog.Nop())

	now := time.Now()
	track := core.TrackRef{ID: "t1"}
	// Must not panic with no output wired.
	a.applyState(&protocol.State{
		CurrentTrack:   &track,
		ActiveDeviceID: "ctl",
		IsPlaying:      true,
		ServerTime:     now.UnixMilli(),
	}, now)

	if a.State() == nil {
		t.Error("state not adopted")
	}
}

func TestAgentEventsCarryStateChanges(t *testing.T) {
	a := NewAgent(New("http://localhost:0", zerolog.Nop()), nil, "ctl", "Control", zerolog.Nop())

	now := time.Now()
	a.applyState(&protocol.State{ServerTime: now.UnixMilli()}, now)

	select {
	case ev := <-a.Events():
		if ev.Kind != EventStateChanged || ev.State == nil {
			t.Errorf("event = %+v, want state change", ev)
		}
	default:
		t.Fatal("no event delivered")
	}
}

func TestClockOffsetFromState(t *testing.T) {
	a := NewAgent(New("http://localhost:0", zerolog.Nop()), nil, "ctl", "Control", zerolog.Nop())

	now := time.Now()
	// Server clock 1.5s ahead of ours.
	a.applyState(&protocol.State{ServerTime: now.UnixMilli() + 1500}, now)

	if got := a.ClockOffsetMs(); got != 1500 {
		t.Errorf("ClockOffsetMs() = %d, want 1500", got)
	}
}

func TestConnStateString(t *testing.T) {
	tests := []struct {
		state ConnState
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateSynced, "synced"},
		{StateReconnecting, "reconnecting"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
