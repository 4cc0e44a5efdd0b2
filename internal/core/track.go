package core

// TrackRef is an immutable projection of catalog data needed for playback.
type TrackRef struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	DurationMs int64  `json:"duration_ms"`
	StreamURL  string `json:"stream_url"`
}
