package core

import "context"

// QueueSource resolves a play context into an ordered track list.
//
// Implementations must return at most MaxQueueSize entries, include the
// anchor track named by the context when one is set, preserve catalog order
// when shuffle is false, and return a fresh permutation of the eligible set
// on every shuffled call.
type QueueSource interface {
	Resolve(ctx context.Context, pc PlayContext, shuffle bool) ([]TrackRef, error)
}

// Catalog resolves a track id into playable metadata.
type Catalog interface {
	Get(ctx context.Context, trackID string) (*TrackRef, error)
}
