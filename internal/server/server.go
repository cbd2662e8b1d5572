// Package server provides the HTTP server for the cursorflow engine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/cursorflow/internal/app"
	"github.com/ayusman/cursorflow/internal/server/api"
	"github.com/ayusman/cursorflow/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	App       *app.App
	Logger    *zap.Logger
}

// Server represents the HTTP server for the engine.
type Server struct {
	config Config
	log    *zap.Logger
	mux    *http.ServeMux
	hub    *WaypointHub
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config: config,
		log:    logger,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	// Register profile and trace APIs if Store is configured
	if s.config.Store != nil {
		var activator api.ProfileActivator
		var replayer api.TraceReplayer
		if s.config.App != nil {
			activator = s.config.App
			replayer = s.config.App
		}

		profiles := api.NewProfileHandler(s.config.Store, activator)
		traces := api.NewTraceHandler(s.config.Store, replayer)
		s.mux.Handle("/api/profiles", profiles)
		s.mux.Handle("/api/profiles/", profiles)
		s.mux.Handle("/api/traces", traces)
		s.mux.Handle("/api/traces/", traces)
	}

	// Register engine endpoints and the waypoint stream if App is configured
	if s.config.App != nil {
		engine := api.NewEngineHandler(s.config.App)
		for _, route := range []string{
			"/api/detections",
			"/api/prediction",
			"/api/aim",
			"/api/enabled",
			"/api/cursor",
			"/api/paths",
			"/api/stats",
			"/api/config",
		} {
			s.mux.Handle(route, engine)
		}

		s.hub = NewWaypointHub(s.log.Named("ws"))
		s.config.App.RegisterPathCallback(s.hub.Broadcast)
		s.mux.Handle("/api/waypoints", s.hub)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Hub returns the waypoint stream, or nil when no App is configured.
func (s *Server) Hub() *WaypointHub {
	return s.hub
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}
	if s.hub != nil {
		response["stream_clients"] = s.hub.Clients()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
