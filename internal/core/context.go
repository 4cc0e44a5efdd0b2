package core

import (
	"github.com/tessro/ensemble/internal/errors"
)

// ContextKind indicates how a queue should be built.
type ContextKind string

const (
	ContextTrack      ContextKind = "track"
	ContextPlaylist   ContextKind = "playlist"
	ContextBuilder    ContextKind = "builder"
	ContextComparison ContextKind = "comparison"
	ContextSearch     ContextKind = "search"
)

// PlayContext is a tagged description of how a queue should be built. Kind
// selects which of the remaining fields are meaningful; the queue source
// resolves it exactly once per play call.
type PlayContext struct {
	Kind       ContextKind `json:"kind"`
	TrackID    string      `json:"track_id,omitempty"`
	PlaylistID string      `json:"playlist_id,omitempty"`
	BuilderID  string      `json:"builder_id,omitempty"`
	TrackIDs   []string    `json:"track_ids,omitempty"`
	Query      string      `json:"query,omitempty"`
	StartIndex int         `json:"start_index,omitempty"`
}

// Validate checks that the context carries the fields its kind requires.
func (c PlayContext) Validate() error {
	switch c.Kind {
	case ContextTrack:
		if c.TrackID == "" {
			return errors.Validationf("track context requires track_id")
		}
	case ContextPlaylist:
		if c.PlaylistID == "" {
			return errors.Validationf("playlist context requires playlist_id")
		}
	case ContextBuilder:
		if c.BuilderID == "" {
			return errors.Validationf("builder context requires builder_id")
		}
	case ContextComparison:
		if len(c.TrackIDs) == 0 {
			return errors.Validationf("comparison context requires track_ids")
		}
	case ContextSearch:
		if c.Query == "" {
			return errors.Validationf("search context requires query")
		}
	default:
		return errors.Validationf("unknown context kind %q", c.Kind)
	}
	if c.StartIndex < 0 {
		return errors.Validationf("start_index must be non-negative")
	}
	return nil
}

// WithAnchor returns a copy of the context anchored at the given track. The
// anchor travels in TrackID so a shuffle toggle re-resolves the same context
// around the currently playing track.
func (c PlayContext) WithAnchor(trackID string) PlayContext {
	c.TrackID = trackID
	return c
}
