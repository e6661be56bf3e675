package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"snake-arena/internal/config"
	"snake-arena/internal/game"
)

// Server is the HTTP server carrying the websocket game protocol plus the
// observability and ops surface.
type Server struct {
	mgr         *game.Manager
	cfg         config.ServerConfig
	router      *chi.Mux
	gate        *ConnGate
	rateLimiter *IPRateLimiter
	stopChan    chan struct{}
}

// NewServer constructs the server without side effects: no goroutines, no
// listeners. Background work starts in Start(), which keeps the router
// usable with httptest.
func NewServer(mgr *game.Manager, cfg config.ServerConfig) *Server {
	s := &Server{
		mgr:      mgr,
		cfg:      cfg,
		gate:     NewConnGate(cfg),
		stopChan: make(chan struct{}),
	}
	s.rateLimiter = NewIPRateLimiter(DefaultRateLimitConfig)
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.rateLimiter.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		HandleWebSocket(w, req, s.mgr, s.cfg, s.gate)
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/rooms", s.handleRooms)
		r.Get("/rooms/{roomID}/preview.png", s.handleRoomPreview)
	})

	return r
}

// handleRooms is the REST mirror of the in-protocol room_stats query, handy
// for dashboards and the load harness.
func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"rooms": s.mgr.Stats(),
	})
}

func (s *Server) handleRoomPreview(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	snap, err := s.mgr.Snapshot(roomID)
	if err != nil {
		writeError(w, "unknown room", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := renderPreview(w, snap, s.mgr.Grid()); err != nil {
		log.Printf("⚠️ preview render for %s: %v", roomID, err)
	}
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start launches background workers and serves until the process exits.
func (s *Server) Start(addr string) error {
	go s.gaugeLoop()
	log.Printf("🌐 server listening on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

// Stop shuts down background workers.
func (s *Server) Stop() {
	close(s.stopChan)
	s.rateLimiter.Stop()
}

// gaugeLoop keeps the room gauges fresh from the lock-free stats side.
func (s *Server) gaugeLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			UpdateRoomGauges(s.mgr.Stats())
		case <-s.stopChan:
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON: %v", err)
	}
}

func writeError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":%q}`, msg)
}
