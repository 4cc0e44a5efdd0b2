package catalog

import (
	"context"
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/tessro/ensemble/internal/core"
	enserrors "github.com/tessro/ensemble/internal/errors"
)

// LibraryFile is the TOML shape accepted by Import.
type LibraryFile struct {
	Tracks          []LibraryTrack    `toml:"tracks"`
	Playlists       []LibraryPlaylist `toml:"playlists"`
	BuilderSessions []LibraryPlaylist `toml:"builder_sessions"`
}

// LibraryTrack describes one track in a library file.
type LibraryTrack struct {
	ID         string `toml:"id"`
	Title      string `toml:"title"`
	Artist     string `toml:"artist"`
	DurationMs int64  `toml:"duration_ms"`
	StreamURL  string `toml:"stream_url"`
}

// LibraryPlaylist describes an ordered track list in a library file.
type LibraryPlaylist struct {
	ID     string   `toml:"id"`
	Name   string   `toml:"name"`
	Tracks []string `toml:"tracks"`
}

// ImportStats summarizes an import run.
type ImportStats struct {
	Tracks          int
	Playlists       int
	BuilderSessions int
}

// Import loads a TOML library file into the catalog. Existing entries with
// the same ids are replaced.
func (c *Catalog) Import(ctx context.Context, path string) (*ImportStats, error) {
	var lib LibraryFile
	if _, err := toml.DecodeFile(path, &lib); err != nil {
		return nil, fmt.Errorf("failed to parse library file: %w", err)
	}

	stats := &ImportStats{}
	for _, lt := range lib.Tracks {
		if lt.ID == "" || lt.Title == "" {
			return nil, enserrors.Validationf("track entries require id and title")
		}
		track := core.TrackRef{
			ID:         lt.ID,
			Title:      lt.Title,
			Artist:     lt.Artist,
			DurationMs: lt.DurationMs,
			StreamURL:  lt.StreamURL,
		}
		if err := c.AddTrack(ctx, track); err != nil {
			return nil, err
		}
		stats.Tracks++
	}

	for _, pl := range lib.Playlists {
		if pl.ID == "" {
			return nil, enserrors.Validationf("playlist entries require id")
		}
		if err := c.PutPlaylist(ctx, pl.ID, pl.Name, pl.Tracks); err != nil {
			return nil, err
		}
		stats.Playlists++
	}

	for _, bs := range lib.BuilderSessions {
		if bs.ID == "" {
			return nil, enserrors.Validationf("builder session entries require id")
		}
		if err := c.PutBuilderSession(ctx, bs.ID, bs.Name, bs.Tracks); err != nil {
			return nil, err
		}
		stats.BuilderSessions++
	}

	return stats, nil
}
