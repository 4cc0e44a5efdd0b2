package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently played tracks",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	entries, err := newClient().GetHistory(cmd.Context())
	if err != nil {
		return err
	}

	if JSONOutput() {
		return json.NewEncoder(os.Stdout).Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No history yet")
		return nil
	}

	table := NewTable("TITLE", "ARTIST", "STARTED")
	for _, e := range entries {
		table.Row(
			TruncateString(e.Track.Title, 40),
			TruncateString(e.Track.Artist, 30),
			humanize.Time(e.StartedAt),
		)
	}
	table.Flush()
	return nil
}
