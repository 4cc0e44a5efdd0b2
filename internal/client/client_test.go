package client

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tessro/ensemble/internal/errors"
	"github.com/tessro/ensemble/internal/protocol"
)

func TestGetDecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/playback" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"queue_index":3,"is_playing":true,"queue":[]}`))
	}))
	defer server.Close()

	c := New(server.URL, zerolog.Nop())
	state, err := c.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.QueueIndex != 3 || !state.IsPlaying {
		t.Errorf("state = %+v", state)
	}
}

func TestErrorTaxonomyRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"validation", http.StatusBadRequest, errors.ErrValidation},
		{"not found", http.StatusNotFound, errors.ErrNotFound},
		{"conflict", http.StatusConflict, errors.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer server.Close()

			c := New(server.URL, zerolog.Nop())
			err := c.Pause(context.Background())
			if !stderrors.Is(err, tt.sentinel) {
				t.Errorf("error = %v, want %v", err, tt.sentinel)
			}
		})
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"no active playback session"}`))
	}))
	defer server.Close()

	c := New(server.URL, zerolog.Nop())
	_ = c.Next(context.Background())
	if calls != 1 {
		t.Errorf("4xx retried %d times, want a single attempt", calls)
	}
}

func TestServerErrorsAreRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	c := New(server.URL, zerolog.Nop())
	if err := c.Resume(context.Background()); err != nil {
		t.Fatalf("Resume() error = %v after %d calls", err, calls)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestPlaySendsRequestBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		var req protocol.PlayRequest
		if err := jsonDecode(r, &req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.TrackID != "t1" || req.DeviceID != "desk" {
			t.Errorf("req = %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"queue":[],"queue_index":0,"active_device_id":"desk"}`))
	}))
	defer server.Close()

	c := New(server.URL, zerolog.Nop())
	resp, err := c.Play(context.Background(), protocol.PlayRequest{TrackID: "t1", DeviceID: "desk"})
	if err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if resp.ActiveDeviceID != "desk" {
		t.Errorf("active device = %q", resp.ActiveDeviceID)
	}
}

func TestWSURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8707", "ws://localhost:8707/ws"},
		{"http://localhost:8707/", "ws://localhost:8707/ws"},
		{"https://music.local", "wss://music.local/ws"},
	}

	for _, tt := range tests {
		c := New(tt.base, zerolog.Nop())
		if got := c.WSURL(); got != tt.want {
			t.Errorf("WSURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func jsonDecode(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
