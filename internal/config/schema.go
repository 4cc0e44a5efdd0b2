package config

// Config is the root configuration structure.
type Config struct {
	Server Server `toml:"server"`
	Client Client `toml:"client"`
	TUI    TUI    `toml:"tui"`
	Log    Log    `toml:"log"`
}

// Server holds coordinator settings.
type Server struct {
	Listen             string `toml:"listen"`
	Library            string `toml:"library"`
	GracePeriodSeconds int    `toml:"grace_period_seconds"`
	WrapQueue          bool   `toml:"wrap_queue"`
	Announce           bool   `toml:"announce"`
	Name               string `toml:"name"`
}

// Client holds settings for connecting a device to the coordinator.
type Client struct {
	ServerURL  string `toml:"server_url"`
	DeviceID   string `toml:"device_id"`
	DeviceName string `toml:"device_name"`

	// DefaultTarget names the device that should produce audio when a play
	// command gives no --to flag. Empty means the requesting device.
	DefaultTarget string `toml:"default_target"`
}

// TUI holds terminal UI settings.
type TUI struct {
	Theme           string `toml:"theme"`
	RefreshInterval int    `toml:"refresh_interval"`
}

// Log holds logging settings.
type Log struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}
