package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgallion1/ndachunk/internal/chunker"
	"github.com/dgallion1/ndachunk/internal/config"
	"github.com/dgallion1/ndachunk/internal/extract"
	"github.com/dgallion1/ndachunk/internal/metrics"
	"github.com/dgallion1/ndachunk/internal/pipeline"
)

// Server is the HTTP API server for ndachunk.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	chunker      *chunker.LegalChunker
	llm          extract.Provider
	metrics      *metrics.Recorder
	gatherer     prometheus.Gatherer
	log          *slog.Logger
	cfg          config.Config
}

// Option configures optional Server collaborators.
type Option func(*Server)

// WithLLM exposes the fallback provider's latency stats.
func WithLLM(p extract.Provider) Option {
	return func(s *Server) { s.llm = p }
}

// WithMetrics records analyses and serves /metrics from g.
func WithMetrics(rec *metrics.Recorder, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = rec
		s.gatherer = g
	}
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, lc *chunker.LegalChunker, log *slog.Logger, cfg config.Config, opts ...Option) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		orchestrator: orch,
		chunker:      lc,
		log:          log,
		cfg:          cfg,
	}
	for _, o := range opts {
		o(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/analyze", s.handleAnalyze)
		r.Post("/api/render", s.handleRender)
		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":          "ok",
		"tokenizer_ready": s.chunker.Counter().Ready(),
	}
	if s.orchestrator != nil {
		resp["queue_depth"] = s.orchestrator.QueueDepth()
	}
	writeJSON(w, http.StatusOK, resp)
}
