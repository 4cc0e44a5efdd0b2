package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/rs/zerolog"

	"github.com/tessro/ensemble/internal/catalog"
	"github.com/tessro/ensemble/internal/discovery"
)

// Server wires the catalog, coordinator, hub and control surface together.
type Server struct {
	addr        string
	logger      zerolog.Logger
	catalog     *catalog.Catalog
	coordinator *Coordinator
	hub         *Hub
	announcer   *discovery.Announcer

	httpServer *http.Server
	listener   net.Listener
}

// Config configures a Server.
type Config struct {
	Addr        string
	GracePeriod time.Duration
	WrapQueue   bool
	Announce    bool
	Name        string
}

// New creates a server around an opened catalog.
func New(cfg Config, cat *catalog.Catalog, logger zerolog.Logger) *Server {
	s := &Server{
		addr:    cfg.Addr,
		logger:  logger.With().Str("component", "server").Logger(),
		catalog: cat,
	}
	s.hub = NewHub(logger, nil)
	s.coordinator = NewCoordinator(cat, s.hub, logger, Options{
		GracePeriod: cfg.GracePeriod,
		WrapQueue:   cfg.WrapQueue,
	})
	if cfg.Announce {
		s.announcer = discovery.NewAnnouncer(cfg.Name, cfg.Addr, logger)
	}
	return s
}

// Coordinator exposes the coordinator, primarily for tests.
func (s *Server) Coordinator() *Coordinator {
	return s.coordinator
}

// Run starts the coordinator and serves the control surface until the
// context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.coordinator.Start()
	defer s.coordinator.Stop()

	if s.announcer != nil {
		go s.announcer.Run(ctx)
	}

	handler := handlers.RecoveryHandler()(handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(s.routes()))

	s.httpServer = &http.Server{
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket connections are long-lived
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(listener)
	}()

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("Coordinator listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Addr returns the bound listen address, once Run has started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}
