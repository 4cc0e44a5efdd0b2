package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tessro/ensemble/internal/client"
	"github.com/tessro/ensemble/internal/tail"
)

var (
	tailTimestamps bool
	tailNoEmoji    bool
	tailTemplate   string
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Stream playback events as they happen",
	Long: `Subscribes to the coordinator's push channel and prints a line for
every playback event: track changes, completions, skips, pause and resume,
device handoffs, shuffle toggles, and track selections.`,
	Example: `  ensemble tail
  ensemble tail --timestamps --no-emoji
  ensemble tail --template '{{.Time}} {{.Type}} {{.Title}}'
  ensemble tail --json`,
	Args: cobra.NoArgs,
	RunE: runTail,
}

func init() {
	tailCmd.Flags().BoolVar(&tailTimestamps, "timestamps", false, "prefix each line with a timestamp")
	tailCmd.Flags().BoolVar(&tailNoEmoji, "no-emoji", false, "disable emoji output")
	tailCmd.Flags().StringVar(&tailTemplate, "template", "", "custom Go template for event lines")
	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newClient()
	agent := client.NewAgent(c, nil, deviceID(), deviceName(), logger)

	go func() {
		if err := agent.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("Agent stopped")
		}
	}()

	watcher := tail.NewWatcher()
	go func() {
		_ = watcher.Run(ctx, agent.Events())
	}()

	formatter := tail.NewFormatter(
		tail.WithEmoji(!tailNoEmoji),
		tail.WithTimestamp(tailTimestamps),
		tail.WithTemplate(tailTemplate),
	)

	enc := json.NewEncoder(os.Stdout)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			if JSONOutput() {
				_ = enc.Encode(tailJSONEvent(ev))
			} else {
				fmt.Println(formatter.Format(ev))
			}
		}
	}
}

// tailJSONEvent flattens a watcher event for line-oriented JSON output.
func tailJSONEvent(e tail.Event) map[string]interface{} {
	out := map[string]interface{}{
		"type":      tail.EventName(e.Type),
		"timestamp": e.Timestamp,
	}
	if e.Current != nil && e.Current.CurrentTrack != nil {
		out["track_id"] = e.Current.CurrentTrack.ID
		out["title"] = e.Current.CurrentTrack.Title
		out["artist"] = e.Current.CurrentTrack.Artist
	}
	if e.Current != nil && e.Current.ActiveDeviceID != "" {
		out["device_id"] = e.Current.ActiveDeviceID
	}
	if e.Selected != nil {
		out["selected_track_id"] = e.Selected.Track.ID
	}
	if e.Type == tail.EventConnection {
		out["conn"] = e.Conn.String()
	}
	return out
}
