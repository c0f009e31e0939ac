// Package statusapi exposes pipeline introspection over HTTP.
package statusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/valueadders/papito/internal/coordinator"
	"github.com/valueadders/papito/internal/gate"
	"github.com/valueadders/papito/internal/learning"
	"github.com/valueadders/papito/internal/value"
)

// Server serves read-only pipeline state. It never mutates anything.
type Server struct {
	router *chi.Mux
	http   *http.Server
	log    zerolog.Logger

	calc    *value.Calculator
	gate    *gate.Gate
	learner *learning.Learner
	coord   *coordinator.Coordinator
}

// New wires the router over the pipeline components. Any component may
// be nil; its endpoints then report an empty object.
func New(addr string, calc *value.Calculator, g *gate.Gate, l *learning.Learner, c *coordinator.Coordinator, log zerolog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		log:     log,
		calc:    calc,
		gate:    g,
		learner: l,
		coord:   c,
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	router.Get("/healthz", s.healthz)
	router.Get("/stats", s.stats)
	router.Get("/decisions", s.decisions)
	router.Get("/decisions/blocked", s.blocked)
	router.Get("/insights", s.insights)
	router.Get("/actions", s.actions)
	router.Get("/events", s.events)
	router.Get("/report/{type}", s.report)

	return s
}

// Handler exposes the router (tests).
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("status api listening")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"status": "ok"}
	if s.coord != nil {
		out["adapters"] = s.coord.HealthCheck(r.Context())
		out["running"] = s.coord.Stats().Running
	}
	writeJSON(w, s.log, out)
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	out := map[string]any{}
	if s.calc != nil {
		out["calculator"] = s.calc.Stats()
	}
	if s.gate != nil {
		out["gate"] = s.gate.Stats()
	}
	if s.learner != nil {
		out["learner"] = s.learner.Stats()
	}
	if s.coord != nil {
		out["coordinator"] = s.coord.Stats()
	}
	writeJSON(w, s.log, out)
}

func (s *Server) decisions(w http.ResponseWriter, r *http.Request) {
	if s.gate == nil {
		writeJSON(w, s.log, []any{})
		return
	}
	limit := queryInt(r, "limit", 50)
	filter := gate.Decision(r.URL.Query().Get("decision"))
	writeJSON(w, s.log, s.gate.RecentDecisions(limit, filter))
}

func (s *Server) blocked(w http.ResponseWriter, _ *http.Request) {
	if s.gate == nil {
		writeJSON(w, s.log, map[string]any{})
		return
	}
	writeJSON(w, s.log, s.gate.Blocked())
}

func (s *Server) insights(w http.ResponseWriter, _ *http.Request) {
	if s.learner == nil {
		writeJSON(w, s.log, []any{})
		return
	}
	writeJSON(w, s.log, s.learner.Insights())
}

func (s *Server) actions(w http.ResponseWriter, r *http.Request) {
	if s.coord == nil {
		writeJSON(w, s.log, []any{})
		return
	}
	limit := queryInt(r, "limit", 50)
	writeJSON(w, s.log, s.coord.Actions(limit))
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	if s.coord == nil {
		writeJSON(w, s.log, []any{})
		return
	}
	limit := queryInt(r, "limit", 50)
	writeJSON(w, s.log, s.coord.Events(limit))
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	if s.learner == nil {
		writeJSON(w, s.log, map[string]any{})
		return
	}
	at := value.ActionType(chi.URLParam(r, "type"))
	writeJSON(w, s.log, s.learner.TypeReport(at))
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, log zerolog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("response encode failed")
	}
}
