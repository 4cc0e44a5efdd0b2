package core

// MaxQueueSize is the hard cap on resolved queues. Queue sources must never
// return more entries, and the coordinator rejects resolutions that do.
const MaxQueueSize = 50

// Queue represents an ordered list of tracks with a playback position.
type Queue struct {
	Tracks       []TrackRef `json:"tracks"`
	CurrentIndex int        `json:"current_index"`
}

// Current returns the currently playing track, or nil if the queue is empty.
func (q *Queue) Current() *TrackRef {
	if q == nil || len(q.Tracks) == 0 || q.CurrentIndex < 0 || q.CurrentIndex >= len(q.Tracks) {
		return nil
	}
	return &q.Tracks[q.CurrentIndex]
}

// Upcoming returns tracks after the current position.
func (q *Queue) Upcoming() []TrackRef {
	if q == nil || len(q.Tracks) == 0 || q.CurrentIndex < 0 || q.CurrentIndex >= len(q.Tracks)-1 {
		return nil
	}
	return q.Tracks[q.CurrentIndex+1:]
}

// Len returns the total number of tracks in the queue.
func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.Tracks)
}

// IsEmpty returns true if the queue has no tracks.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// IndexOf returns the position of the track with the given id, or -1.
func (q *Queue) IndexOf(trackID string) int {
	if q == nil {
		return -1
	}
	for i, t := range q.Tracks {
		if t.ID == trackID {
			return i
		}
	}
	return -1
}
