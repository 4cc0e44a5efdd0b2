package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current playback state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	state, err := newClient().GetState(cmd.Context())
	if err != nil {
		return err
	}

	if JSONOutput() {
		return json.NewEncoder(os.Stdout).Encode(state)
	}

	if state.CurrentTrack == nil {
		fmt.Println("Nothing playing")
		return nil
	}

	track := state.CurrentTrack
	icon := "⏸"
	if state.IsPlaying {
		icon = "▶"
	}

	fmt.Printf("%s %s — %s\n", icon, track.Title, track.Artist)

	bar := FormatProgress(state.PositionMs, track.DurationMs, 30)
	fmt.Printf("  %s %s / %s\n", bar,
		FormatDurationMs(state.PositionMs),
		FormatDurationMs(track.DurationMs))

	fmt.Printf("  Queue: %d/%d", state.QueueIndex+1, len(state.Queue))
	if state.ShuffleEnabled {
		fmt.Print("  🔀 shuffle")
	}
	fmt.Println()

	if state.ActiveDeviceID != "" {
		fmt.Printf("  Playing on: %s\n", state.ActiveDeviceID)
	}
	return nil
}
