// Package healthz serves the minimal operator-facing HTTP surface
// SPEC_FULL.md §B carves out: a liveness endpoint for the deployed
// scheduler process. The router idiom (gorilla/mux, a dedicated
// setupRoutes) follows internal/api/server.go; everything else that
// file does (WebSocket fan-out, CORS, the GraphQL surface) stays out
// of scope per spec.md §1.
package healthz

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server is a liveness-only HTTP endpoint: GET /healthz reports
// process uptime and whether the last scheduled window completed.
type Server struct {
	logger     *zap.Logger
	router     *mux.Router
	httpServer *http.Server
	startedAt  time.Time
	lastWindow func() (ok bool, asOf time.Time)
}

// New builds a Server bound to addr. lastWindow reports the outcome of
// the most recent RunWindow call; it may be nil before the first window
// has run.
func New(logger *zap.Logger, addr string, lastWindow func() (bool, time.Time)) *Server {
	s := &Server{
		logger:     logger,
		router:     mux.NewRouter(),
		startedAt:  time.Now(),
		lastWindow: lastWindow,
	}
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s
}

type healthzResponse struct {
	Status         string    `json:"status"`
	UptimeSeconds  float64   `json:"uptimeSeconds"`
	LastWindowOK   bool      `json:"lastWindowOk,omitempty"`
	LastWindowAsOf time.Time `json:"lastWindowAsOf,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthzResponse{Status: "ok", UptimeSeconds: time.Since(s.startedAt).Seconds()}
	if s.lastWindow != nil {
		resp.LastWindowOK, resp.LastWindowAsOf = s.lastWindow()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Start begins serving in the background; errors after a clean Stop
// are swallowed, matching net/http.Server's own ErrServerClosed idiom.
func (s *Server) Start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("healthz server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the configured listen address (e.g. ":8081"), for logging.
func (s *Server) Addr() string { return s.httpServer.Addr }
