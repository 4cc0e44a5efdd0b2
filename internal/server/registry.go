package server

import (
	"sort"
	"time"

	"github.com/tessro/ensemble/internal/core"
	"github.com/tessro/ensemble/internal/errors"
	"github.com/tessro/ensemble/internal/protocol"
)

// registry is the device table plus the pending grace timers. It is owned
// by the coordinator's writer goroutine: every method except stopAll must
// be called from inside an op, which is what makes reconnect-vs-expiry
// races resolve deterministically — whichever operation is serialized
// first wins outright.
type registry struct {
	devices map[string]*core.Device
	grace   map[string]*graceTimer
	// conns counts live sockets per device id. A device can briefly hold
	// two sockets when it reconnects before its stale socket errors out;
	// only the last socket's teardown may start the grace timer.
	conns   map[string]int
	nextGen uint64
}

// graceTimer is one pending removal. The generation number lets an expiry
// op detect that it was superseded: a timer that fired concurrently with a
// reconnect gets its queued op ignored because the generation no longer
// matches.
type graceTimer struct {
	timer *time.Timer
	gen   uint64
}

func newRegistry() *registry {
	return &registry{
		devices: make(map[string]*core.Device),
		grace:   make(map[string]*graceTimer),
		conns:   make(map[string]int),
	}
}

func (r *registry) get(id string) (*core.Device, bool) {
	d, ok := r.devices[id]
	return d, ok
}

// list returns devices sorted by name, annotated with the active flag.
func (r *registry) list(activeID string) []core.Device {
	out := make([]core.Device, 0, len(r.devices))
	for _, d := range r.devices {
		dev := *d
		dev.IsActive = d.ID == activeID
		out = append(out, dev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// stopAll cancels every pending timer. Called once, after the coordinator
// loop has exited.
func (r *registry) stopAll() {
	for id, gt := range r.grace {
		gt.timer.Stop()
		delete(r.grace, id)
	}
}

// RegisterDevice inserts or updates a device. Registering an id that has a
// pending grace timer cancels the timer — this is the reconnect path; there
// is no separate reconnect verb.
func (c *Coordinator) RegisterDevice(id, name string) (core.Device, error) {
	if id == "" {
		return core.Device{}, errors.Validationf("device registration requires an id")
	}
	if name == "" {
		name = id
	}

	var registered core.Device
	err := c.do(func() error {
		now := c.now()
		c.devices.conns[id]++
		if gt, ok := c.devices.grace[id]; ok {
			gt.timer.Stop()
			delete(c.devices.grace, id)
			c.logger.Debug().Str("device", id).Msg("Reconnect within grace period")
		}

		if d, ok := c.devices.devices[id]; ok {
			d.Name = name
			d.LastSeen = now
			registered = *d
		} else {
			d := &core.Device{
				ID:          id,
				Name:        name,
				ConnectedAt: now,
				LastSeen:    now,
			}
			c.devices.devices[id] = d
			registered = *d
			c.logger.Info().Str("device", id).Str("name", name).Msg("Device registered")
		}

		c.broadcastDevices()
		return nil
	})
	return registered, err
}

// DeviceDisconnected records a socket teardown. The grace period only
// starts when the device's last socket closed; a stale socket dying after
// its replacement registered must not doom the live connection.
// Disconnecting an unknown id is a no-op. At most one timer is pending per
// device; a repeat disconnect keeps the earlier timer.
func (c *Coordinator) DeviceDisconnected(id string) {
	_ = c.do(func() error {
		d, ok := c.devices.devices[id]
		if !ok {
			return nil
		}
		d.LastSeen = c.now()

		if n := c.devices.conns[id]; n > 0 {
			c.devices.conns[id] = n - 1
		}
		if c.devices.conns[id] > 0 {
			c.logger.Debug().Str("device", id).Msg("Stale socket closed, device still connected")
			return nil
		}

		if _, pending := c.devices.grace[id]; pending {
			return nil
		}

		c.devices.nextGen++
		gen := c.devices.nextGen
		gt := &graceTimer{gen: gen}
		gt.timer = time.AfterFunc(c.gracePeriod, func() {
			// Expiry goes through the same serialized queue as every other
			// mutation; the generation check discards it if a reconnect got
			// there first.
			_ = c.do(func() error {
				c.expireDevice(id, gen)
				return nil
			})
		})
		c.devices.grace[id] = gt

		c.logger.Debug().
			Str("device", id).
			Dur("grace", c.gracePeriod).
			Msg("Device disconnected, grace timer started")
		return nil
	})
}

// expireDevice removes a device whose grace period elapsed. Must be called
// from inside an op.
func (c *Coordinator) expireDevice(id string, gen uint64) {
	gt, ok := c.devices.grace[id]
	if !ok || gt.gen != gen {
		return // cancelled or superseded by a reconnect
	}
	delete(c.devices.grace, id)
	delete(c.devices.devices, id)
	delete(c.devices.conns, id)
	c.logger.Info().Str("device", id).Msg("Device forgotten after grace period")
	c.broadcastDevices()

	if c.state.ActiveDeviceID == id {
		c.state.ActiveDeviceID = ""
		if c.state.IsPlaying {
			c.state.PositionMs = c.state.InterpolatedPosition(c.now())
			c.state.TrackStartedAt = nil
			c.state.IsPlaying = false
		}
		c.logger.Info().Str("device", id).Msg("Active device lost, playback paused")
		c.broadcastState()
	}
}

// Devices returns the registered devices annotated with the active flag.
func (c *Coordinator) Devices() []core.Device {
	var out []core.Device
	_ = c.do(func() error {
		out = c.devices.list(c.state.ActiveDeviceID)
		return nil
	})
	return out
}

// broadcastDevices must be called from inside an op.
func (c *Coordinator) broadcastDevices() {
	c.broadcaster.Broadcast(protocol.MessageDevicesUpdated, protocol.DevicesUpdated{
		Devices: c.devices.list(c.state.ActiveDeviceID),
	})
}
