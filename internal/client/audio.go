package client

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/tessro/ensemble/internal/core"
	"github.com/tessro/ensemble/internal/errors"
)

// Output is a local audio sink. Implementations are not required to be
// safe for concurrent use; the Guard serializes access.
type Output interface {
	// Load prepares a track for playback from positionMs.
	Load(track core.TrackRef, positionMs int64) error

	// Play starts or continues producing audio.
	Play() error

	// Pause stops producing audio without losing position.
	Pause() error

	// Seek moves within the loaded track.
	Seek(positionMs int64) error

	// Stop halts playback and releases the track.
	Stop() error
}

// Guard wraps the device's single audio output. At most one lease is live
// at a time: acquiring revokes the previous holder and stops the output, so
// two sync agents on the same device can never both produce audio.
type Guard struct {
	mu     sync.Mutex
	output Output
	lease  *Lease
	logger zerolog.Logger
}

// Lease is exclusive access to the output. Every method fails once the
// lease has been revoked or released.
type Lease struct {
	guard *Guard
	owner string
}

// NewGuard creates a guard around an output.
func NewGuard(output Output, logger zerolog.Logger) *Guard {
	return &Guard{
		output: output,
		logger: logger.With().Str("component", "audio").Logger(),
	}
}

// Acquire takes exclusive control of the output, revoking any previous
// lease and stopping whatever it was playing.
func (g *Guard) Acquire(owner string) *Lease {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lease != nil {
		g.logger.Warn().
			Str("previous", g.lease.owner).
			Str("owner", owner).
			Msg("Revoking audio lease")
		if err := g.output.Stop(); err != nil {
			g.logger.Debug().Err(err).Msg("Stop on revocation failed")
		}
	}

	g.lease = &Lease{guard: g, owner: owner}
	return g.lease
}

// Release gives the output up. Releasing a revoked lease is a no-op.
func (l *Lease) Release() {
	g := l.guard
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lease != l {
		return
	}
	if err := g.output.Stop(); err != nil {
		g.logger.Debug().Err(err).Msg("Stop on release failed")
	}
	g.lease = nil
}

// held reports whether the lease is still the active one.
func (l *Lease) held() bool {
	l.guard.mu.Lock()
	defer l.guard.mu.Unlock()
	return l.guard.lease == l
}

func (l *Lease) with(fn func(Output) error) error {
	g := l.guard
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lease != l {
		return errors.Conflictf("audio lease for %q was revoked", l.owner)
	}
	return fn(g.output)
}

// Load prepares a track on the guarded output.
func (l *Lease) Load(track core.TrackRef, positionMs int64) error {
	return l.with(func(o Output) error { return o.Load(track, positionMs) })
}

// Play starts the guarded output.
func (l *Lease) Play() error {
	return l.with(func(o Output) error { return o.Play() })
}

// Pause pauses the guarded output.
func (l *Lease) Pause() error {
	return l.with(func(o Output) error { return o.Pause() })
}

// Seek repositions the guarded output.
func (l *Lease) Seek(positionMs int64) error {
	return l.with(func(o Output) error { return o.Seek(positionMs) })
}

// Stop halts the guarded output.
func (l *Lease) Stop() error {
	return l.with(func(o Output) error { return o.Stop() })
}

// LogOutput is an output that only logs what it is told to do. It stands in
// on devices without an audio backend and in tests.
type LogOutput struct {
	logger zerolog.Logger
}

// NewLogOutput creates a logging output.
func NewLogOutput(logger zerolog.Logger) *LogOutput {
	return &LogOutput{logger: logger.With().Str("component", "output").Logger()}
}

func (o *LogOutput) Load(track core.TrackRef, positionMs int64) error {
	o.logger.Info().
		Str("track", track.ID).
		Str("title", track.Title).
		Int64("position_ms", positionMs).
		Msg("Load")
	return nil
}

func (o *LogOutput) Play() error {
	o.logger.Info().Msg("Play")
	return nil
}

func (o *LogOutput) Pause() error {
	o.logger.Info().Msg("Pause")
	return nil
}

func (o *LogOutput) Seek(positionMs int64) error {
	o.logger.Info().Int64("position_ms", positionMs).Msg("Seek")
	return nil
}

func (o *LogOutput) Stop() error {
	o.logger.Info().Msg("Stop")
	return nil
}
