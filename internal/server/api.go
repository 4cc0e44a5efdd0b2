package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/tessro/ensemble/internal/errors"
	"github.com/tessro/ensemble/internal/protocol"
)

const registrationTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The coordinator serves trusted clients on a local network.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/playback", s.handleGetState).Methods(http.MethodGet)
	api.HandleFunc("/playback/play", s.handlePlay).Methods(http.MethodPost)
	api.HandleFunc("/playback/pause", s.handlePause).Methods(http.MethodPost)
	api.HandleFunc("/playback/resume", s.handleResume).Methods(http.MethodPost)
	api.HandleFunc("/playback/next", s.handleNext).Methods(http.MethodPost)
	api.HandleFunc("/playback/prev", s.handlePrev).Methods(http.MethodPost)
	api.HandleFunc("/playback/seek", s.handleSeek).Methods(http.MethodPost)
	api.HandleFunc("/playback/shuffle", s.handleShuffle).Methods(http.MethodPost)
	api.HandleFunc("/devices", s.handleDevices).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/select", s.handleSelect).Methods(http.MethodPost)

	r.HandleFunc("/ws", s.handleWS)

	return r
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.State())
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req protocol.PlayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Validationf("malformed play request: %v", err))
		return
	}

	resp, err := s.coordinator.Play(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.coordinator.Pause())
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.coordinator.Resume())
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.coordinator.Next())
}

func (s *Server) handlePrev(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.coordinator.Prev())
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req protocol.SeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Validationf("malformed seek request: %v", err))
		return
	}
	s.respond(w, s.coordinator.Seek(req.PositionMs))
}

func (s *Server) handleShuffle(w http.ResponseWriter, r *http.Request) {
	var req protocol.ShuffleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Validationf("malformed shuffle request: %v", err))
		return
	}
	s.respond(w, s.coordinator.SetShuffle(r.Context(), req.Enabled))
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.Devices())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.History())
}

// handleSelect broadcasts a track:selected event. Selection is a
// collaborator event: it informs other clients but never mutates playback.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req protocol.SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Validationf("malformed select request: %v", err))
		return
	}
	if req.TrackID == "" {
		writeError(w, errors.Validationf("select requires track_id"))
		return
	}

	track, err := s.catalog.Get(r.Context(), req.TrackID)
	if err != nil {
		writeError(w, err)
		return
	}

	s.hub.Broadcast(protocol.MessageTrackSelected, protocol.TrackSelected{
		Track:    *track,
		DeviceID: req.DeviceID,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "selected"})
}

// handleWS upgrades the push channel. The first client message must be a
// registration carrying the device id and name; afterwards the connection
// is write-only from the server's perspective, and its closure starts the
// device's grace period.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	_ = ws.SetReadDeadline(time.Now().Add(registrationTimeout))
	var reg protocol.Registration
	if err := ws.ReadJSON(&reg); err != nil {
		s.logger.Warn().Err(err).Msg("Client failed to register")
		_ = ws.Close()
		return
	}
	_ = ws.SetReadDeadline(time.Time{})

	if _, err := s.coordinator.RegisterDevice(reg.DeviceID, reg.Name); err != nil {
		s.logger.Warn().Err(err).Msg("Rejected registration")
		_ = ws.Close()
		return
	}

	conn := s.hub.Add(ws, reg.DeviceID)

	// Welcome snapshot: the client knows its registration landed and can
	// start interpolating before the first broadcast.
	s.hub.Send(conn, protocol.MessagePlaybackState, s.coordinator.State())

	// Reader loop. Clients do not send anything after registering; this
	// exists to observe the close.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Remove(conn)
	s.coordinator.DeviceDisconnected(reg.DeviceID)
}

func (s *Server) respond(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errors.HTTPStatus(err), protocol.ErrorResponse{Error: err.Error()})
}
