package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/tessro/ensemble/internal/client"
	"github.com/tessro/ensemble/internal/core"
	"github.com/tessro/ensemble/internal/errors"
	"github.com/tessro/ensemble/internal/protocol"
	"github.com/tessro/ensemble/internal/wizard"
)

var (
	playPlaylist string
	playBuilder  string
	playTracks   []string
	playSearch   string
	playShuffle  bool
	playTo       string
)

var playCmd = &cobra.Command{
	Use:   "play [track-id]",
	Short: "Start playback",
	Long: `Starts a new playback session on the coordinator.

With a bare track id the session plays that single track. The context flags
build a larger queue instead: --playlist and --builder resolve a stored
source, --tracks queues an explicit comparison list, and --search queues
matching library tracks. A track id given alongside a context flag anchors
the queue at that track.`,
	Example: `  ensemble play trk_9hj2k
  ensemble play --playlist pl_morning
  ensemble play trk_9hj2k --playlist pl_morning --shuffle
  ensemble play --tracks trk_a,trk_b,trk_c
  ensemble play --search "miles davis" --to kitchen`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVar(&playPlaylist, "playlist", "", "play a playlist")
	playCmd.Flags().StringVar(&playBuilder, "builder", "", "play a builder source")
	playCmd.Flags().StringSliceVar(&playTracks, "tracks", nil, "play an explicit comparison list of track ids")
	playCmd.Flags().StringVar(&playSearch, "search", "", "play tracks matching a library search")
	playCmd.Flags().BoolVar(&playShuffle, "shuffle", false, "shuffle the resolved queue")
	playCmd.Flags().StringVar(&playTo, "to", "", "target device (name or id) that should produce audio")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	trackID := ""
	if len(args) > 0 {
		trackID = args[0]
	}

	playCtx, err := buildPlayContext(trackID)
	if err != nil {
		return err
	}

	c := newClient()
	ctx := cmd.Context()

	// A play call needs a registered device; register this process for the
	// duration of the command. Dropping the socket afterwards starts the
	// grace period, so a one-shot run does not linger in the device list.
	id := deviceID()
	session, err := registerSession(ctx, c, id, deviceName())
	if err != nil {
		return err
	}
	defer session.Close()

	target := ""
	if playTo != "" {
		target, err = resolveDevice(ctx, c, playTo)
		if err != nil {
			return err
		}
	} else if cfg.Client.DefaultTarget != "" {
		target, err = resolveDevice(ctx, c, cfg.Client.DefaultTarget)
		if err != nil {
			return err
		}
	} else if wizard.IsTerminal() && !JSONOutput() {
		devices, derr := c.GetDevices(ctx)
		others := withoutDevice(devices, id)
		if derr == nil && len(others) > 0 && wizard.NeedsDevice("", others) {
			if picked, perr := wizard.PromptTargetDevice(others); perr == nil && picked != "" {
				target = picked
			}
		}
	}

	resp, err := c.Play(ctx, protocol.PlayRequest{
		TrackID:      playCtx.TrackID,
		Context:      playCtx,
		Shuffle:      playShuffle,
		DeviceID:     id,
		TargetDevice: target,
	})
	if err != nil {
		return err
	}

	if JSONOutput() {
		return json.NewEncoder(os.Stdout).Encode(resp)
	}

	if len(resp.Queue) == 0 {
		fmt.Println("Queue is empty")
		return nil
	}

	current := resp.Queue[resp.QueueIndex]
	fmt.Printf("▶ %s — %s\n", current.Title, current.Artist)
	fmt.Printf("  Queue: %d tracks (position %d)\n", len(resp.Queue), resp.QueueIndex+1)
	if resp.ActiveDeviceID != "" {
		fmt.Printf("  Playing on: %s\n", resp.ActiveDeviceID)
	}
	return nil
}

// buildPlayContext maps the context flags onto a tagged play context. Exactly
// one context flag may be set; a bare track id plays that one track.
func buildPlayContext(trackID string) (core.PlayContext, error) {
	set := 0
	for _, s := range []bool{playPlaylist != "", playBuilder != "", len(playTracks) > 0, playSearch != ""} {
		if s {
			set++
		}
	}
	if set > 1 {
		return core.PlayContext{}, errors.Validationf("--playlist, --builder, --tracks and --search are mutually exclusive")
	}

	switch {
	case playPlaylist != "":
		return core.PlayContext{Kind: core.ContextPlaylist, PlaylistID: playPlaylist, TrackID: trackID}, nil
	case playBuilder != "":
		return core.PlayContext{Kind: core.ContextBuilder, BuilderID: playBuilder, TrackID: trackID}, nil
	case len(playTracks) > 0:
		return core.PlayContext{Kind: core.ContextComparison, TrackIDs: playTracks, TrackID: trackID}, nil
	case playSearch != "":
		return core.PlayContext{Kind: core.ContextSearch, Query: playSearch, TrackID: trackID}, nil
	case trackID != "":
		return core.PlayContext{Kind: core.ContextTrack, TrackID: trackID}, nil
	}
	return core.PlayContext{}, errors.Validationf("nothing to play: give a track id or a context flag")
}

// resolveDevice matches a --to argument against registered devices by id
// first, then by case-insensitive name.
func resolveDevice(ctx context.Context, c *client.Client, nameOrID string) (string, error) {
	devices, err := c.GetDevices(ctx)
	if err != nil {
		return "", err
	}
	for _, d := range devices {
		if d.ID == nameOrID {
			return d.ID, nil
		}
	}
	var matches []core.Device
	for _, d := range devices {
		if strings.EqualFold(d.Name, nameOrID) {
			matches = append(matches, d)
		}
	}
	switch len(matches) {
	case 0:
		return "", errors.NotFoundf("no device named %q", nameOrID)
	case 1:
		return matches[0].ID, nil
	default:
		return "", errors.Conflictf("%d devices named %q, use the device id", len(matches), nameOrID)
	}
}

func withoutDevice(devices []core.Device, id string) []core.Device {
	var out []core.Device
	for _, d := range devices {
		if d.ID != id {
			out = append(out, d)
		}
	}
	return out
}

// wsSession holds a registration socket open for the lifetime of a command.
type wsSession struct {
	conn *websocket.Conn
}

// registerSession opens the push channel and registers the device, returning
// a closer. The server treats the close as a disconnect and starts the
// reconnect grace period.
func registerSession(ctx context.Context, c *client.Client, id, name string) (*wsSession, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.WSURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrServerUnreachable, err)
	}
	if err := conn.WriteJSON(protocol.Registration{DeviceID: id, Name: name}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("register device: %w", err)
	}

	// The welcome snapshot confirms the registration landed; only after it
	// arrives may control requests name this device.
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var env protocol.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		conn.Close()
		return nil, fmt.Errorf("register device: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	return &wsSession{conn: conn}, nil
}

func (s *wsSession) Close() {
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = s.conn.Close()
}
