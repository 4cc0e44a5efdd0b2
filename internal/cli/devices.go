package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List registered devices",
	Args:  cobra.NoArgs,
	RunE:  runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	devices, err := newClient().GetDevices(cmd.Context())
	if err != nil {
		return err
	}

	if JSONOutput() {
		return json.NewEncoder(os.Stdout).Encode(devices)
	}

	if len(devices) == 0 {
		fmt.Println("No devices registered")
		return nil
	}

	table := NewTable("", "NAME", "ID", "LAST SEEN")
	for _, d := range devices {
		table.Row(
			StatusIcon(d.IsActive),
			d.Name,
			d.ID,
			humanize.Time(d.LastSeen),
		)
	}
	table.Flush()
	return nil
}
