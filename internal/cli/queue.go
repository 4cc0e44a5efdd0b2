package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the current queue",
	Args:  cobra.NoArgs,
	RunE:  runQueue,
}

func init() {
	rootCmd.AddCommand(queueCmd)
}

func runQueue(cmd *cobra.Command, args []string) error {
	state, err := newClient().GetState(cmd.Context())
	if err != nil {
		return err
	}

	if JSONOutput() {
		return json.NewEncoder(os.Stdout).Encode(state.Queue)
	}

	if len(state.Queue) == 0 {
		fmt.Println("Queue is empty")
		return nil
	}

	table := NewTable("", "#", "TITLE", "ARTIST", "LENGTH")
	for i, track := range state.Queue {
		marker := " "
		if i == state.QueueIndex {
			marker = "▶"
		}
		table.Row(
			marker,
			fmt.Sprintf("%d", i+1),
			TruncateString(track.Title, 40),
			TruncateString(track.Artist, 30),
			FormatDurationMs(track.DurationMs),
		)
	}
	table.Flush()
	return nil
}
