package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tessro/ensemble/internal/catalog"
	"github.com/tessro/ensemble/internal/server"
)

var (
	serveListen  string
	serveLibrary string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the playback coordinator",
	Long: `Runs the coordinator that owns the authoritative playback state.
Clients connect over the local network, register as devices, and receive
every state change as it happens.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "listen address (default from config)")
	serveCmd.Flags().StringVar(&serveLibrary, "library", "", "library database path (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	listen := cfg.Server.Listen
	if serveListen != "" {
		listen = serveListen
	}
	library := cfg.Server.Library
	if serveLibrary != "" {
		library = serveLibrary
	}

	cat, err := catalog.Open(library)
	if err != nil {
		return fmt.Errorf("failed to open library: %w", err)
	}
	defer cat.Close()

	count, err := cat.CountTracks(cmd.Context())
	if err == nil {
		logger.Info().Int("tracks", count).Str("library", library).Msg("Library opened")
	}

	srv := server.New(server.Config{
		Addr:        listen,
		GracePeriod: time.Duration(cfg.Server.GracePeriodSeconds) * time.Second,
		WrapQueue:   cfg.Server.WrapQueue,
		Announce:    cfg.Server.Announce,
		Name:        cfg.Server.Name,
	}, cat, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
