package cli

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tessro/ensemble/internal/client"
	"github.com/tessro/ensemble/internal/config"
	"github.com/tessro/ensemble/internal/errors"
)

var (
	cfgFile string
	jsonOut bool
	verbose bool

	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ensemble",
	Short: "Synchronized music playback across devices",
	Long: `Ensemble coordinates music playback across every device on your
network: one device produces the audio while all of them stay in sync and
share control.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.ensemblerc)")
	rootCmd.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initConfig() error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger = newLogger()
	return nil
}

// newLogger builds the zerolog logger from the log config. Verbose wins
// over the configured level.
func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}

	var out *os.File = os.Stderr
	if cfg.Log.File != "" {
		if f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			out = f
		}
	}

	writer := zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if msg := errors.Format(err); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(1)
	}
}

// JSONOutput returns true if JSON output is requested.
func JSONOutput() bool {
	return jsonOut
}

// Verbose returns true if verbose output is requested.
func Verbose() bool {
	return verbose
}

// newClient builds a control client for the configured coordinator.
func newClient() *client.Client {
	return client.New(cfg.Client.ServerURL, logger)
}

// deviceID returns the configured device id, or a fresh one for this run.
func deviceID() string {
	if cfg.Client.DeviceID != "" {
		return cfg.Client.DeviceID
	}
	return uuid.NewString()
}

// deviceName returns the configured device name, falling back to hostname.
func deviceName() string {
	if cfg.Client.DeviceName != "" {
		return cfg.Client.DeviceName
	}
	host, err := os.Hostname()
	if err != nil {
		return "ensemble-cli"
	}
	return host
}
