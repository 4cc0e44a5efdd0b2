package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessro/ensemble/internal/errors"
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause playback on all devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().Pause(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("⏸ Paused")
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume paused playback",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().Resume(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("▶ Resumed")
		return nil
	},
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Skip to the next track in the queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		if err := c.Next(cmd.Context()); err != nil {
			return err
		}
		return printCurrentTrack(cmd, "⏭")
	},
}

var prevCmd = &cobra.Command{
	Use:   "prev",
	Short: "Go back to the previous track",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		if err := c.Prev(cmd.Context()); err != nil {
			return err
		}
		return printCurrentTrack(cmd, "⏮")
	},
}

var seekCmd = &cobra.Command{
	Use:   "seek <position>",
	Short: "Seek within the current track",
	Long: `Seeks to a position within the current track. The position is either
seconds (90), m:ss (1:30), or a relative offset (+15, -15).`,
	Args: cobra.ExactArgs(1),
	RunE: runSeek,
}

var shuffleCmd = &cobra.Command{
	Use:   "shuffle <on|off>",
	Short: "Toggle shuffle for the current session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var enabled bool
		switch strings.ToLower(args[0]) {
		case "on", "true", "1":
			enabled = true
		case "off", "false", "0":
			enabled = false
		default:
			return errors.Validationf("expected on or off, got %q", args[0])
		}
		if err := newClient().SetShuffle(cmd.Context(), enabled); err != nil {
			return err
		}
		if enabled {
			fmt.Println("🔀 Shuffle on")
		} else {
			fmt.Println("Shuffle off")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(prevCmd)
	rootCmd.AddCommand(seekCmd)
	rootCmd.AddCommand(shuffleCmd)
}

func runSeek(cmd *cobra.Command, args []string) error {
	c := newClient()
	ctx := cmd.Context()

	posMs, relative, err := parseSeekPosition(args[0])
	if err != nil {
		return err
	}

	if relative {
		state, err := c.GetState(ctx)
		if err != nil {
			return err
		}
		if state.CurrentTrack == nil {
			return errors.Conflictf("nothing is playing")
		}
		posMs += state.PositionMs
		if posMs < 0 {
			posMs = 0
		}
	}

	if err := c.Seek(ctx, posMs); err != nil {
		return err
	}
	fmt.Printf("Seeked to %s\n", FormatDurationMs(posMs))
	return nil
}

// parseSeekPosition accepts "90", "1:30", "+15" or "-15". Relative offsets
// are returned in ms with relative=true.
func parseSeekPosition(arg string) (posMs int64, relative bool, err error) {
	s := arg
	sign := int64(1)
	if strings.HasPrefix(s, "+") {
		relative = true
		s = s[1:]
	} else if strings.HasPrefix(s, "-") {
		relative = true
		sign = -1
		s = s[1:]
	}

	if m, ss, ok := strings.Cut(s, ":"); ok {
		mins, err1 := strconv.ParseInt(m, 10, 64)
		secs, err2 := strconv.ParseInt(ss, 10, 64)
		if err1 != nil || err2 != nil || secs >= 60 {
			return 0, false, errors.Validationf("invalid position %q", arg)
		}
		return sign * (mins*60 + secs) * 1000, relative, nil
	}

	secs, perr := strconv.ParseInt(s, 10, 64)
	if perr != nil {
		return 0, false, errors.Validationf("invalid position %q", arg)
	}
	return sign * secs * 1000, relative, nil
}

func printCurrentTrack(cmd *cobra.Command, icon string) error {
	state, err := newClient().GetState(cmd.Context())
	if err != nil {
		return err
	}
	if state.CurrentTrack == nil {
		fmt.Println(icon)
		return nil
	}
	fmt.Printf("%s %s — %s\n", icon, state.CurrentTrack.Title, state.CurrentTrack.Artist)
	return nil
}
