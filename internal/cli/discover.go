package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessro/ensemble/internal/discovery"
)

var discoverTimeout time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find coordinators on the local network",
	Args:  cobra.NoArgs,
	RunE:  runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 2*time.Second, "how long to wait for answers")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	endpoints, err := discovery.Discover(cmd.Context(), discoverTimeout)
	if err != nil {
		return err
	}

	if JSONOutput() {
		type jsonEndpoint struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		}
		out := make([]jsonEndpoint, 0, len(endpoints))
		for _, ep := range endpoints {
			out = append(out, jsonEndpoint{Name: ep.Name, URL: ep.URL()})
		}
		return json.NewEncoder(os.Stdout).Encode(out)
	}

	if len(endpoints) == 0 {
		fmt.Println("No coordinators found")
		return nil
	}

	table := NewTable("NAME", "URL")
	for _, ep := range endpoints {
		table.Row(ep.Name, ep.URL())
	}
	table.Flush()
	return nil
}
