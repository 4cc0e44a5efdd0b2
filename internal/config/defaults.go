package config

import (
	"os"
	"path/filepath"
)

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Server: Server{
			Listen:             ":8707",
			Library:            defaultLibraryPath(),
			GracePeriodSeconds: 30,
			WrapQueue:          false,
			Announce:           true,
			Name:               defaultName(),
		},
		Client: Client{
			ServerURL: "http://localhost:8707",
		},
		TUI: TUI{
			Theme:           "auto",
			RefreshInterval: 250,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	// Server
	if c.Server.Listen == "" {
		c.Server.Listen = d.Server.Listen
	}
	if c.Server.Library == "" {
		c.Server.Library = d.Server.Library
	}
	if c.Server.GracePeriodSeconds == 0 {
		c.Server.GracePeriodSeconds = d.Server.GracePeriodSeconds
	}
	if c.Server.Name == "" {
		c.Server.Name = d.Server.Name
	}

	// Client
	if c.Client.ServerURL == "" {
		c.Client.ServerURL = d.Client.ServerURL
	}

	// TUI
	if c.TUI.Theme == "" {
		c.TUI.Theme = d.TUI.Theme
	}
	if c.TUI.RefreshInterval == 0 {
		c.TUI.RefreshInterval = d.TUI.RefreshInterval
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// defaultLibraryPath places the catalog under the user's data directory.
func defaultLibraryPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "ensemble.db"
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "ensemble", "library.db")
}

func defaultName() string {
	host, err := os.Hostname()
	if err != nil {
		return "ensemble"
	}
	return host
}
