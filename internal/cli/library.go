package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tessro/ensemble/internal/catalog"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage the track library",
}

var libraryImportCmd = &cobra.Command{
	Use:   "import <file.toml>",
	Short: "Import tracks and playlists from a library file",
	Long: `Imports a TOML library file into the library database. Tracks,
playlists and builder sessions with existing ids are replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: runLibraryImport,
}

var libraryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show library statistics",
	Args:  cobra.NoArgs,
	RunE:  runLibraryStats,
}

func init() {
	libraryCmd.AddCommand(libraryImportCmd)
	libraryCmd.AddCommand(libraryStatsCmd)
	rootCmd.AddCommand(libraryCmd)
}

func runLibraryImport(cmd *cobra.Command, args []string) error {
	cat, err := catalog.Open(cfg.Server.Library)
	if err != nil {
		return fmt.Errorf("failed to open library: %w", err)
	}
	defer cat.Close()

	stats, err := cat.Import(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if JSONOutput() {
		return json.NewEncoder(os.Stdout).Encode(map[string]int{
			"tracks":           stats.Tracks,
			"playlists":        stats.Playlists,
			"builder_sessions": stats.BuilderSessions,
		})
	}

	fmt.Printf("Imported %d tracks, %d playlists, %d builder sessions\n",
		stats.Tracks, stats.Playlists, stats.BuilderSessions)
	return nil
}

func runLibraryStats(cmd *cobra.Command, args []string) error {
	cat, err := catalog.Open(cfg.Server.Library)
	if err != nil {
		return fmt.Errorf("failed to open library: %w", err)
	}
	defer cat.Close()

	count, err := cat.CountTracks(cmd.Context())
	if err != nil {
		return err
	}

	if JSONOutput() {
		return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
			"tracks": count,
			"path":   cfg.Server.Library,
		})
	}

	fmt.Printf("Library: %s\n", cfg.Server.Library)
	fmt.Printf("Tracks:  %d\n", count)
	return nil
}
