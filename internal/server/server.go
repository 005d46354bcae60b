// Package server provides the local HTTP API for handmouse: health, tracking
// status, pause/resume, the live action stream and the action journal.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/handmouse/internal/gesture"
	"github.com/ayusman/handmouse/internal/logging"
	"github.com/ayusman/handmouse/internal/server/api"
	"github.com/ayusman/handmouse/internal/store"
)

// shutdownTimeout bounds how long in-flight requests get after ctx is done.
const shutdownTimeout = 2 * time.Second

// Status is the view of the tracking pipeline the API reports and toggles.
type Status interface {
	Enabled() bool
	SetEnabled(enabled bool)
	State() gesture.State
	FramesProcessed() uint64
}

// Config holds the server configuration. Every field is optional; routes
// whose backing component is nil are not registered.
type Config struct {
	Store  *store.Store
	Status Status
	Events *Hub
	Logger *zap.Logger
}

// Server represents the HTTP server for the handmouse application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	logger *zap.Logger
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		logger: logging.OrNop(config.Logger),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Status != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.HandleFunc("/api/toggle", s.handleToggle)
	}

	if s.config.Events != nil {
		s.mux.Handle("/api/events", s.config.Events)
	}

	if s.config.Store != nil {
		s.mux.Handle("/api/actions", api.NewActionHandler(s.config.Store))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	})
}

type statusResponse struct {
	Enabled         bool          `json:"enabled"`
	State           gesture.State `json:"state"`
	FramesProcessed uint64        `json:"frames_processed"`
	Clients         int           `json:"clients"`
}

func (s *Server) status() statusResponse {
	resp := statusResponse{
		Enabled:         s.config.Status.Enabled(),
		State:           s.config.Status.State(),
		FramesProcessed: s.config.Status.FramesProcessed(),
	}
	if s.config.Events != nil {
		resp.Clients = s.config.Events.Clients()
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.status())
}

// handleToggle flips tracking on or off. A body of {"enabled": bool} sets
// the flag explicitly instead.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
	}

	enabled := !s.config.Status.Enabled()
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	s.config.Status.SetEnabled(enabled)
	s.logger.Info("tracking toggled over http", zap.Bool("enabled", enabled))

	writeJSON(w, s.status())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if s.config.Events != nil {
		s.config.Events.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
