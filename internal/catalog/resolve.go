package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"

	"github.com/tessro/ensemble/internal/core"
	enserrors "github.com/tessro/ensemble/internal/errors"
)

// Resolve builds the ordered queue for a play context. The result is capped
// at core.MaxQueueSize, contains the anchor track when the context names
// one, preserves catalog order when shuffle is off, and is a fresh random
// draw on every shuffled call.
func (c *Catalog) Resolve(ctx context.Context, pc core.PlayContext, shuffle bool) ([]core.TrackRef, error) {
	if err := pc.Validate(); err != nil {
		return nil, err
	}

	eligible, err := c.eligibleTracks(ctx, pc)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, enserrors.NotFoundf("context resolved to an empty track list")
	}

	start := anchorIndex(eligible, pc)
	if shuffle {
		return shuffledWindow(eligible, start), nil
	}
	return orderedWindow(eligible, start), nil
}

// eligibleTracks loads the full ordered track set for the context, before
// windowing or shuffling.
func (c *Catalog) eligibleTracks(ctx context.Context, pc core.PlayContext) ([]core.TrackRef, error) {
	switch pc.Kind {
	case core.ContextTrack:
		t, err := c.Get(ctx, pc.TrackID)
		if err != nil {
			return nil, err
		}
		return []core.TrackRef{*t}, nil

	case core.ContextPlaylist:
		if err := c.exists(ctx, `SELECT 1 FROM playlists WHERE id = ?`, pc.PlaylistID, "playlist"); err != nil {
			return nil, err
		}
		return c.queryTracks(ctx, `
			SELECT t.id, t.title, t.artist, t.duration_ms, t.stream_url
			FROM playlist_tracks pt JOIN tracks t ON t.id = pt.track_id
			WHERE pt.playlist_id = ?
			ORDER BY pt.position`, pc.PlaylistID)

	case core.ContextBuilder:
		if err := c.exists(ctx, `SELECT 1 FROM builder_sessions WHERE id = ?`, pc.BuilderID, "builder session"); err != nil {
			return nil, err
		}
		return c.queryTracks(ctx, `
			SELECT t.id, t.title, t.artist, t.duration_ms, t.stream_url
			FROM builder_tracks bt JOIN tracks t ON t.id = bt.track_id
			WHERE bt.session_id = ?
			ORDER BY bt.position`, pc.BuilderID)

	case core.ContextComparison:
		tracks := make([]core.TrackRef, 0, len(pc.TrackIDs))
		for _, id := range pc.TrackIDs {
			t, err := c.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			tracks = append(tracks, *t)
		}
		return tracks, nil

	case core.ContextSearch:
		pattern := "%" + pc.Query + "%"
		return c.queryTracks(ctx, `
			SELECT id, title, artist, duration_ms, stream_url
			FROM tracks
			WHERE title LIKE ? OR artist LIKE ?
			ORDER BY artist, title`, pattern, pattern)

	default:
		return nil, enserrors.Validationf("unknown context kind %q", pc.Kind)
	}
}

func (c *Catalog) exists(ctx context.Context, query, id, what string) error {
	var one int
	err := c.db.QueryRowContext(ctx, query, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return enserrors.NotFoundf("%s %q", what, id)
	}
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", what, err)
	}
	return nil
}

// anchorIndex finds where the queue should start: the anchor track when the
// context names one that exists in the eligible set, otherwise the
// requested start index clamped into range.
func anchorIndex(tracks []core.TrackRef, pc core.PlayContext) int {
	if pc.TrackID != "" {
		for i, t := range tracks {
			if t.ID == pc.TrackID {
				return i
			}
		}
	}
	if pc.StartIndex >= len(tracks) {
		return len(tracks) - 1
	}
	return pc.StartIndex
}

// orderedWindow takes up to MaxQueueSize tracks in catalog order starting
// at the anchor.
func orderedWindow(tracks []core.TrackRef, start int) []core.TrackRef {
	end := start + core.MaxQueueSize
	if end > len(tracks) {
		end = len(tracks)
	}
	out := make([]core.TrackRef, end-start)
	copy(out, tracks[start:end])
	return out
}

// shuffledWindow draws up to MaxQueueSize unique tracks from the eligible
// set, always including the anchor, freshly randomized per call.
func shuffledWindow(tracks []core.TrackRef, anchor int) []core.TrackRef {
	rest := make([]core.TrackRef, 0, len(tracks)-1)
	for i, t := range tracks {
		if i != anchor {
			rest = append(rest, t)
		}
	}
	rand.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})

	limit := core.MaxQueueSize - 1
	if len(rest) > limit {
		rest = rest[:limit]
	}

	out := make([]core.TrackRef, 0, len(rest)+1)
	out = append(out, tracks[anchor])
	return append(out, rest...)
}
