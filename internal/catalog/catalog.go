package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/tessro/ensemble/internal/core"
	enserrors "github.com/tessro/ensemble/internal/errors"
)

// Catalog is the sqlite-backed track catalog. It implements both the track
// lookup and the queue source contracts the coordinator consumes.
type Catalog struct {
	db *sql.DB
}

// Open opens (or creates) a catalog database at the given path. Use
// ":memory:" for an ephemeral catalog.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	// A single connection keeps in-memory databases coherent and is plenty
	// for the coordinator's serialized access pattern.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS tracks (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			artist      TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			stream_url  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS playlists (
			id   TEXT PRIMARY KEY,
			name TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS playlist_tracks (
			playlist_id TEXT NOT NULL REFERENCES playlists(id),
			position    INTEGER NOT NULL,
			track_id    TEXT NOT NULL REFERENCES tracks(id),
			PRIMARY KEY (playlist_id, position)
		);

		CREATE TABLE IF NOT EXISTS builder_sessions (
			id   TEXT PRIMARY KEY,
			name TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS builder_tracks (
			session_id TEXT NOT NULL REFERENCES builder_sessions(id),
			position   INTEGER NOT NULL,
			track_id   TEXT NOT NULL REFERENCES tracks(id),
			PRIMARY KEY (session_id, position)
		);

		CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist, title);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Catalog{db: db}, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get resolves a track id into playable metadata.
func (c *Catalog) Get(ctx context.Context, trackID string) (*core.TrackRef, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT id, title, artist, duration_ms, stream_url FROM tracks WHERE id = ?`, trackID)

	var t core.TrackRef
	err := row.Scan(&t.ID, &t.Title, &t.Artist, &t.DurationMs, &t.StreamURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, enserrors.NotFoundf("track %q", trackID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load track: %w", err)
	}
	return &t, nil
}

// AddTrack inserts or replaces a track.
func (c *Catalog) AddTrack(ctx context.Context, t core.TrackRef) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO tracks (id, title, artist, duration_ms, stream_url)
		 VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Artist, t.DurationMs, t.StreamURL)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}
	return nil
}

// PutPlaylist creates or replaces a playlist and its track order.
func (c *Catalog) PutPlaylist(ctx context.Context, id, name string, trackIDs []string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO playlists (id, name) VALUES (?, ?)`, id, name); err != nil {
		return fmt.Errorf("failed to upsert playlist: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM playlist_tracks WHERE playlist_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear playlist: %w", err)
	}
	for i, trackID := range trackIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO playlist_tracks (playlist_id, position, track_id) VALUES (?, ?, ?)`,
			id, i, trackID); err != nil {
			return fmt.Errorf("failed to insert playlist track: %w", err)
		}
	}

	return tx.Commit()
}

// PutBuilderSession creates or replaces a playlist-builder working set.
func (c *Catalog) PutBuilderSession(ctx context.Context, id, name string, trackIDs []string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO builder_sessions (id, name) VALUES (?, ?)`, id, name); err != nil {
		return fmt.Errorf("failed to upsert builder session: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM builder_tracks WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear builder session: %w", err)
	}
	for i, trackID := range trackIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO builder_tracks (session_id, position, track_id) VALUES (?, ?, ?)`,
			id, i, trackID); err != nil {
			return fmt.Errorf("failed to insert builder track: %w", err)
		}
	}

	return tx.Commit()
}

// CountTracks returns the number of tracks in the catalog.
func (c *Catalog) CountTracks(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return n, nil
}

func (c *Catalog) queryTracks(ctx context.Context, query string, args ...interface{}) ([]core.TrackRef, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []core.TrackRef
	for rows.Next() {
		var t core.TrackRef
		if err := rows.Scan(&t.ID, &t.Title, &t.Artist, &t.DurationMs, &t.StreamURL); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}
