package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/ecosystem-analysis-service/internal/domain"
	"github.com/couchcryptid/ecosystem-analysis-service/internal/pipeline"
)

const maxRequestBody = 1 << 20

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Service is the analysis surface exposed over HTTP.
type Service interface {
	ReadinessChecker
	Analyze(ctx context.Context, req pipeline.AnalysisRequest) (domain.AnalysisReport, error)
	Variables() []pipeline.Variable
}

// Server exposes the analysis API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	service    Service
	logger     *slog.Logger
}

// NewServer creates an HTTP server. writeTimeout bounds a whole analysis
// request and should exceed the analysis deadline.
func NewServer(addr string, svc Service, writeTimeout time.Duration, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		},
		service: svc,
		logger:  logger,
	}

	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", handleReady(svc))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/analyze", s.handleAnalyze)
		api.Get("/variables", s.handleVariables)
	})

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req pipeline.AnalysisRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "decode request: "+err.Error())
		return
	}

	report, err := s.service.Analyze(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, report)
	case domain.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled):
		// Client went away; nothing to write.
	default:
		s.logger.Error("analysis failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type variableView struct {
	Name       string   `json:"name"`
	Collection string   `json:"collection"`
	ScaleM     float64  `json:"scale_m"`
	Metrics    []string `json:"metrics"`
}

func (s *Server) handleVariables(w http.ResponseWriter, _ *http.Request) {
	vars := s.service.Variables()
	out := make([]variableView, 0, len(vars))
	for _, v := range vars {
		view := variableView{
			Name:       v.Name,
			Collection: v.Source.Collection,
			ScaleM:     v.Source.ScaleMeters,
			Metrics:    make([]string, 0, len(v.Metrics)),
		}
		for _, m := range v.Metrics {
			view.Metrics = append(view.Metrics, m.Key)
		}
		out = append(out, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{"variables": out})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
