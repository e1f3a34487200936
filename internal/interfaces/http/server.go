// Package http serves the engine's external read surface: /metrics
// (Prometheus), /healthz, and /overrides/{scopeKey}. Adapted from the
// teacher's interfaces/http package, which used gorilla/mux to route
// metrics and regime-status endpoints the same way.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/learn"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/scope"
)

// OverrideReader is the dependency this server needs to serve
// /overrides/{scopeKey}: learn.Store already satisfies it.
type OverrideReader interface {
	Get(key scope.Key, now time.Time) learn.Override
}

// HealthChecker reports whether backing stores are reachable;
// persistence.RepositoryHealth satisfies it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server wires the engine's read-only HTTP surface.
type Server struct {
	router    *mux.Router
	overrides OverrideReader
	health    HealthChecker
}

// NewServer builds a Server with every route registered.
func NewServer(overrides OverrideReader, health HealthChecker) *Server {
	s := &Server{router: mux.NewRouter(), overrides: overrides, health: health}
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.HandleFunc("/overrides/{scopeKey}", s.handleOverride).Methods(http.MethodGet)
	return s
}

// Handler returns the server's http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.HealthCheck(r.Context()); err != nil {
			log.Warn().Err(err).Msg("healthz: backing store unreachable")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleOverride serves get_override(scope_key) (spec §6 external read
// contract) as JSON.
func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key := scope.Key(vars["scopeKey"])

	ov := s.overrides.Get(key, time.Now())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(ov)
}
