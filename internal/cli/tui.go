package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/tessro/ensemble/internal/tui"
)

var tuiTheme string

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive terminal interface",
	Long: `Runs the full-screen terminal interface. The TUI registers as a
device, mirrors every broadcast, and offers playback control, queue
filtering, device handoff, and history.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().StringVar(&tuiTheme, "theme", "", "color theme: auto, dark, or light (default from config)")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	theme := cfg.TUI.Theme
	if tuiTheme != "" {
		theme = tuiTheme
	}

	refresh := time.Duration(cfg.TUI.RefreshInterval) * time.Millisecond

	return tui.Run(newClient(), deviceID(), deviceName(), theme, refresh, logger)
}
