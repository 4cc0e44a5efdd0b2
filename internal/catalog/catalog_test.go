package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/tessro/ensemble/internal/core"
	enserrors "github.com/tessro/ensemble/internal/errors"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func seedTracks(t *testing.T, c *Catalog, n int) []string {
	t.Helper()
	ctx := context.Background()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("t%03d", i)
		track := core.TrackRef{
			ID:         id,
			Title:      fmt.Sprintf("Track %03d", i),
			Artist:     fmt.Sprintf("Artist %d", i%7),
			DurationMs: 180000,
			StreamURL:  "/stream/" + id,
		}
		if err := c.AddTrack(ctx, track); err != nil {
			t.Fatalf("AddTrack() error = %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestGet(t *testing.T) {
	c := openTestCatalog(t)
	seedTracks(t, c, 3)
	ctx := context.Background()

	track, err := c.Get(ctx, "t001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if track.Title != "Track 001" {
		t.Errorf("Get() title = %q, want %q", track.Title, "Track 001")
	}

	_, err = c.Get(ctx, "missing")
	if !errors.Is(err, enserrors.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want not-found", err)
	}
}

func TestResolveTrackContext(t *testing.T) {
	c := openTestCatalog(t)
	seedTracks(t, c, 1)

	queue, err := c.Resolve(context.Background(),
		core.PlayContext{Kind: core.ContextTrack, TrackID: "t000"}, false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(queue) != 1 || queue[0].ID != "t000" {
		t.Errorf("Resolve(track) = %v, want single t000", queue)
	}
}

func TestResolvePlaylistOrdered(t *testing.T) {
	c := openTestCatalog(t)
	ids := seedTracks(t, c, 10)
	ctx := context.Background()
	if err := c.PutPlaylist(ctx, "p1", "Test", ids); err != nil {
		t.Fatalf("PutPlaylist() error = %v", err)
	}

	queue, err := c.Resolve(ctx, core.PlayContext{
		Kind:       core.ContextPlaylist,
		PlaylistID: "p1",
		TrackID:    "t003",
	}, false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if queue[0].ID != "t003" {
		t.Errorf("queue starts at %s, want anchor t003", queue[0].ID)
	}
	for i, track := range queue {
		if want := fmt.Sprintf("t%03d", i+3); track.ID != want {
			t.Errorf("queue[%d] = %s, want %s (catalog order)", i, track.ID, want)
		}
	}
}

func TestResolveShuffleCapsAtFifty(t *testing.T) {
	c := openTestCatalog(t)
	ids := seedTracks(t, c, 200)
	ctx := context.Background()
	if err := c.PutPlaylist(ctx, "big", "Big", ids); err != nil {
		t.Fatalf("PutPlaylist() error = %v", err)
	}

	queue, err := c.Resolve(ctx, core.PlayContext{
		Kind:       core.ContextPlaylist,
		PlaylistID: "big",
		TrackID:    "t150",
	}, true)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if len(queue) != core.MaxQueueSize {
		t.Fatalf("len(queue) = %d, want %d", len(queue), core.MaxQueueSize)
	}

	seen := make(map[string]bool, len(queue))
	anchorFound := false
	for _, track := range queue {
		if seen[track.ID] {
			t.Errorf("duplicate track %s in shuffled queue", track.ID)
		}
		seen[track.ID] = true
		if track.ID == "t150" {
			anchorFound = true
		}
	}
	if !anchorFound {
		t.Error("anchor t150 missing from shuffled queue")
	}
}

func TestResolveShuffleIsPermutationOfEligible(t *testing.T) {
	c := openTestCatalog(t)
	ids := seedTracks(t, c, 20)
	ctx := context.Background()
	if err := c.PutPlaylist(ctx, "p", "P", ids); err != nil {
		t.Fatal(err)
	}

	queue, err := c.Resolve(ctx, core.PlayContext{
		Kind:       core.ContextPlaylist,
		PlaylistID: "p",
	}, true)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(queue) != 20 {
		t.Fatalf("len(queue) = %d, want all 20 eligible tracks", len(queue))
	}
	seen := make(map[string]bool)
	for _, track := range queue {
		seen[track.ID] = true
	}
	for _, id := range ids {
		if !seen[id] {
			t.Errorf("track %s omitted from shuffled permutation", id)
		}
	}
}

func TestResolveSearch(t *testing.T) {
	c := openTestCatalog(t)
	seedTracks(t, c, 30)

	queue, err := c.Resolve(context.Background(), core.PlayContext{
		Kind:  core.ContextSearch,
		Query: "Artist 3",
	}, false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(queue) == 0 {
		t.Fatal("search returned no tracks")
	}
	for _, track := range queue {
		if track.Artist != "Artist 3" {
			t.Errorf("search returned track by %q", track.Artist)
		}
	}
}

func TestResolveComparisonPreservesOrder(t *testing.T) {
	c := openTestCatalog(t)
	seedTracks(t, c, 5)

	queue, err := c.Resolve(context.Background(), core.PlayContext{
		Kind:     core.ContextComparison,
		TrackIDs: []string{"t004", "t001"},
	}, false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(queue) != 2 || queue[0].ID != "t004" || queue[1].ID != "t001" {
		t.Errorf("Resolve(comparison) = %v, want [t004 t001]", queue)
	}
}

func TestResolveMissingPlaylist(t *testing.T) {
	c := openTestCatalog(t)
	seedTracks(t, c, 1)

	_, err := c.Resolve(context.Background(), core.PlayContext{
		Kind:       core.ContextPlaylist,
		PlaylistID: "ghost",
	}, false)
	if !errors.Is(err, enserrors.ErrNotFound) {
		t.Errorf("Resolve(missing playlist) error = %v, want not-found", err)
	}
}

func TestResolveEmptyResult(t *testing.T) {
	c := openTestCatalog(t)
	seedTracks(t, c, 3)

	_, err := c.Resolve(context.Background(), core.PlayContext{
		Kind:  core.ContextSearch,
		Query: "no such artist anywhere",
	}, false)
	if !errors.Is(err, enserrors.ErrNotFound) {
		t.Errorf("Resolve(empty search) error = %v, want not-found", err)
	}
}

func TestImport(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "library.toml")
	content := `
[[tracks]]
id = "imp1"
title = "Imported One"
artist = "Importer"
duration_ms = 120000
stream_url = "/stream/imp1"

[[tracks]]
id = "imp2"
title = "Imported Two"
artist = "Importer"
duration_ms = 95000
stream_url = "/stream/imp2"

[[playlists]]
id = "pl1"
name = "Imports"
tracks = ["imp1", "imp2"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	stats, err := c.Import(ctx, path)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if stats.Tracks != 2 || stats.Playlists != 1 {
		t.Errorf("Import() stats = %+v, want 2 tracks, 1 playlist", stats)
	}

	queue, err := c.Resolve(ctx, core.PlayContext{Kind: core.ContextPlaylist, PlaylistID: "pl1"}, false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(queue) != 2 || queue[0].ID != "imp1" {
		t.Errorf("imported playlist = %v, want [imp1 imp2]", queue)
	}
}
