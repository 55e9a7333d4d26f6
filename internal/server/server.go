// Package server implements the system's ops surface: a liveness/readiness
// check, a registry of scheduler jobs that can be triggered on demand, and
// a stock_analysis push channel, per the minimal HTTP footprint this system
// needs outside its own broker/document-store interfaces. Grounded on the
// teacher's internal/server/server.go middleware/Start/Shutdown shape, with
// its cors.Handler dropped: CORS middleware is an explicitly excluded
// concern here.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/aristath/marketintel/internal/events"
)

// JobTrigger is satisfied by *scheduler.Scheduler; kept as an interface so
// handler tests can supply a fake.
type JobTrigger interface {
	Jobs() []string
	TriggerNow(name string) error
}

// HealthChecker reports whether a dependency this server fronts is alive.
// Implementations are expected to be cheap and side-effect free.
type HealthChecker interface {
	Name() string
	Healthy(ctx context.Context) error
}

// Config configures a Server.
type Config struct {
	Log      zerolog.Logger
	Port     int
	Scheduler JobTrigger
	Bus      *events.Manager
	Checks   []HealthChecker
	DevMode  bool

	// ExplainMCPServer, if set, is mounted at /mcp/ so an external LLM
	// client can call the explainability agent's tools over HTTP instead
	// of stdio.
	ExplainMCPServer *mcpserver.MCPServer
}

// Server is the ops-facing HTTP surface.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger

	scheduler JobTrigger
	checks    []HealthChecker

	hub              *AnalysisHub
	unsubscribeEvents func()
	explainMCP       *mcpserver.MCPServer
}

// New builds a Server and wires its routes. Call Start to begin serving.
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		scheduler:  cfg.Scheduler,
		checks:     cfg.Checks,
		explainMCP: cfg.ExplainMCPServer,
	}

	s.setupMiddleware(cfg.DevMode)

	if cfg.Bus != nil {
		s.hub = NewAnalysisHub(cfg.Log)
		go s.hub.Run()
		s.unsubscribeEvents = bridgeEvents(cfg.Bus, s.hub)
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Get("/jobs", s.handleListJobs)
	s.router.Post("/jobs/{name}/trigger", s.handleTriggerJob)

	if s.hub != nil {
		s.router.Get("/ws/stock_analysis", s.hub.ServeWS)
	}

	if s.explainMCP != nil {
		streamable := mcpserver.NewStreamableHTTPServer(s.explainMCP, mcpserver.WithEndpointPath("/mcp/"))
		s.router.Mount("/mcp/", streamable)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	type checkResult struct {
		Name  string `json:"name"`
		Error string `json:"error,omitempty"`
	}

	results := make([]checkResult, 0, len(s.checks))
	ready := true
	for _, check := range s.checks {
		cr := checkResult{Name: check.Name()}
		if err := check.Healthy(r.Context()); err != nil {
			cr.Error = err.Error()
			ready = false
		}
		results = append(results, cr)
	}

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(map[string]any{"ready": ready, "checks": results})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"jobs": []string{}})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"jobs": s.scheduler.Jobs()})
}

func (s *Server) handleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if s.scheduler == nil {
		http.Error(w, "no scheduler configured", http.StatusServiceUnavailable)
		return
	}

	if err := s.scheduler.TriggerNow(name); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Start begins serving. Blocks until the server stops or errors.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server and its websocket hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	if s.hub != nil {
		if s.unsubscribeEvents != nil {
			s.unsubscribeEvents()
		}
		s.hub.Stop()
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
