package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	multicastAddr = "239.255.73.73:9707"
	probeMessage  = "ENSEMBLE-DISCOVER"

	defaultTimeout = 2 * time.Second
)

// Endpoint is a coordinator discovered on the local network.
type Endpoint struct {
	Name string `json:"name"`
	Port int    `json:"port"`
	Host string `json:"-"`
}

// URL returns the control surface base URL for the endpoint.
func (e Endpoint) URL() string {
	return fmt.Sprintf("http://%s", net.JoinHostPort(e.Host, fmt.Sprintf("%d", e.Port)))
}

// Announcer answers discovery probes so clients can find the coordinator
// without configuration.
type Announcer struct {
	name   string
	port   int
	logger zerolog.Logger
}

// NewAnnouncer creates an announcer for a coordinator listening on addr.
func NewAnnouncer(name, addr string, logger zerolog.Logger) *Announcer {
	return &Announcer{
		name:   name,
		port:   portOf(addr),
		logger: logger.With().Str("component", "discovery").Logger(),
	}
}

// Run listens for probes until the context is cancelled.
func (a *Announcer) Run(ctx context.Context) {
	group, err := net.ResolveUDPAddr("udp4", multicastAddr)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Discovery disabled: bad multicast address")
		return
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, group)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Discovery disabled: cannot join multicast group")
		return
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	reply, err := json.Marshal(Endpoint{Name: a.name, Port: a.port})
	if err != nil {
		a.logger.Warn().Err(err).Msg("Discovery disabled: cannot marshal reply")
		return
	}

	a.logger.Info().Str("group", multicastAddr).Msg("Answering discovery probes")

	buf := make([]byte, 256)
	for {
		n, sender, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logger.Debug().Err(err).Msg("Discovery read failed")
			return
		}
		if strings.TrimSpace(string(buf[:n])) != probeMessage {
			continue
		}
		if _, err := conn.WriteToUDP(reply, sender); err != nil {
			a.logger.Debug().Err(err).Msg("Discovery reply failed")
		}
	}
}

// Discover probes the local network and returns the coordinators that
// answered within the timeout.
func Discover(ctx context.Context, timeout time.Duration) ([]Endpoint, error) {
	if timeout == 0 {
		timeout = defaultTimeout
	}

	group, err := net.ResolveUDPAddr("udp4", multicastAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve multicast addr: %w", err)
	}
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, fmt.Errorf("listen udp: %w", err)
	}
	defer conn.Close()

	if _, err := conn.WriteToUDP([]byte(probeMessage), group); err != nil {
		return nil, fmt.Errorf("send probe: %w", err)
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	var endpoints []Endpoint
	seen := make(map[string]bool)
	buf := make([]byte, 1024)
	for {
		n, sender, err := conn.ReadFromUDP(buf)
		if err != nil {
			break // deadline reached
		}
		var ep Endpoint
		if err := json.Unmarshal(buf[:n], &ep); err != nil {
			continue
		}
		ep.Host = sender.IP.String()
		if seen[ep.URL()] {
			continue
		}
		seen[ep.URL()] = true
		endpoints = append(endpoints, ep)
	}

	return endpoints, nil
}

// portOf extracts the port from a listen address like ":8707".
func portOf(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	var port int
	_, _ = fmt.Sscanf(portStr, "%d", &port)
	return port
}
