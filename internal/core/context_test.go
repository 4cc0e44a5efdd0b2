package core

import (
	"errors"
	"testing"

	enserrors "github.com/tessro/ensemble/internal/errors"
)

func TestPlayContextValidate(t *testing.T) {
	tests := []struct {
		name    string
		pc      PlayContext
		wantErr bool
	}{
		{
			name: "track",
			pc:   PlayContext{Kind: ContextTrack, TrackID: "t1"},
		},
		{
			name:    "track without id",
			pc:      PlayContext{Kind: ContextTrack},
			wantErr: true,
		},
		{
			name: "playlist",
			pc:   PlayContext{Kind: ContextPlaylist, PlaylistID: "p1", StartIndex: 3},
		},
		{
			name:    "playlist without id",
			pc:      PlayContext{Kind: ContextPlaylist},
			wantErr: true,
		},
		{
			name: "builder",
			pc:   PlayContext{Kind: ContextBuilder, BuilderID: "b1"},
		},
		{
			name: "comparison",
			pc:   PlayContext{Kind: ContextComparison, TrackIDs: []string{"a", "b"}},
		},
		{
			name:    "comparison without tracks",
			pc:      PlayContext{Kind: ContextComparison},
			wantErr: true,
		},
		{
			name: "search",
			pc:   PlayContext{Kind: ContextSearch, Query: "aphex"},
		},
		{
			name:    "unknown kind",
			pc:      PlayContext{Kind: "radio"},
			wantErr: true,
		},
		{
			name:    "negative start index",
			pc:      PlayContext{Kind: ContextSearch, Query: "x", StartIndex: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pc.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, enserrors.ErrValidation) {
				t.Errorf("Validate() error %v is not a validation error", err)
			}
		})
	}
}

func TestWithAnchor(t *testing.T) {
	pc := PlayContext{Kind: ContextPlaylist, PlaylistID: "p1"}
	anchored := pc.WithAnchor("t7")
	if anchored.TrackID != "t7" {
		t.Errorf("WithAnchor() TrackID = %q, want t7", anchored.TrackID)
	}
	if pc.TrackID != "" {
		t.Error("WithAnchor() mutated the receiver")
	}
}
