// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/marketsrc/hermes/internal/api/middleware"
	"github.com/marketsrc/hermes/internal/api/response"
	"github.com/marketsrc/hermes/internal/app"
	"github.com/marketsrc/hermes/internal/core"
	"github.com/marketsrc/hermes/internal/metrics"
)

// Server represents the HTTP server for HERMES
type Server struct {
	httpServer *http.Server
	app        *app.App
	logger     *zap.Logger
	mux        *http.ServeMux
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	MetricsPath string
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, application *app.App, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		app:    application,
		logger: logger,
		mux:    mux,
	}
	s.setupRoutes(cfg)

	var handler http.Handler = mux
	if m := application.Metrics(); m != nil {
		handler = metrics.HTTPMiddleware(m)(handler)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config) {
	auth := middleware.APIKeyAuth(cfg.APIKey)

	s.mux.Handle("GET /api/v1/quote/{symbol}", auth(http.HandlerFunc(s.handleQuote)))
	s.mux.Handle("GET /api/v1/bars/{symbol}", auth(http.HandlerFunc(s.handleBars)))
	s.mux.Handle("GET /api/v1/news", auth(http.HandlerFunc(s.handleNews)))
	s.mux.Handle("GET /api/v1/status", auth(http.HandlerFunc(s.handleStatus)))
	s.mux.Handle("DELETE /api/v1/cache/{symbol}", auth(http.HandlerFunc(s.handleInvalidate)))
	s.mux.Handle("POST /api/v1/providers/{id}/check", auth(http.HandlerFunc(s.handleProviderCheck)))

	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	if m := s.app.Metrics(); m != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routing mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func requestID(w http.ResponseWriter) string {
	id := uuid.New().String()
	w.Header().Set("X-Request-ID", id)
	return id
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	id := requestID(w)
	symbol := r.PathValue("symbol")

	result, err := s.app.Router().GetQuote(r.Context(), symbol)
	if err != nil {
		s.logger.Warn("quote request failed",
			zap.String("symbol", symbol), zap.Error(err))
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, id, result)
}

func (s *Server) handleBars(w http.ResponseWriter, r *http.Request) {
	id := requestID(w)
	symbol := r.PathValue("symbol")

	timeframe := core.Timeframe(r.URL.Query().Get("timeframe"))
	if timeframe == "" {
		timeframe = core.Timeframe1Day
	}
	if !timeframe.IsValid() {
		response.BadRequest(w, fmt.Sprintf("unsupported timeframe %q", timeframe))
		return
	}

	rng, err := parseRange(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	result, err := s.app.Router().GetBars(r.Context(), symbol, timeframe, rng)
	if err != nil {
		s.logger.Warn("bars request failed",
			zap.String("symbol", symbol), zap.Error(err))
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, id, result)
}

// parseRange reads start/end query params as RFC3339. When absent the
// range defaults to the trailing 24 hours.
func parseRange(r *http.Request) (core.Range, error) {
	q := r.URL.Query()
	startStr, endStr := q.Get("start"), q.Get("end")
	if startStr == "" && endStr == "" {
		end := time.Now().UTC()
		return core.Range{Start: end.Add(-24 * time.Hour), End: end}, nil
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return core.Range{}, fmt.Errorf("invalid start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return core.Range{}, fmt.Errorf("invalid end: %w", err)
	}
	rng := core.Range{Start: start, End: end}
	if !rng.IsValid() {
		return core.Range{}, fmt.Errorf("start must be before end")
	}
	return rng, nil
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	id := requestID(w)
	symbol := r.URL.Query().Get("symbol")

	result, err := s.app.Router().GetNews(r.Context(), symbol)
	if err != nil {
		s.logger.Warn("news request failed",
			zap.String("symbol", symbol), zap.Error(err))
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, id, result)
}

// statusPayload aggregates cache, limiter, and provider health for the
// status endpoint.
type statusPayload struct {
	Cache     any            `json:"cache"`
	Limits    map[string]any `json:"limits"`
	Providers map[string]any `json:"providers"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := requestID(w)

	payload := statusPayload{
		Cache:     s.app.CacheStats(),
		Limits:    make(map[string]any),
		Providers: make(map[string]any),
	}
	for pid, hs := range s.app.HealthStatus() {
		payload.Providers[string(pid)] = hs
		if status, ok := s.app.LimiterStatus(pid); ok {
			payload.Limits[string(pid)] = status
		}
	}
	response.JSON(w, http.StatusOK, id, payload)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	id := requestID(w)
	symbol := r.PathValue("symbol")

	removed := s.app.InvalidateSymbol(symbol)
	response.JSON(w, http.StatusOK, id, map[string]int{"removed": removed})
}

// handleProviderCheck runs an on-demand health check, which is the only
// way an auth-failed provider re-enters rotation.
func (s *Server) handleProviderCheck(w http.ResponseWriter, r *http.Request) {
	id := requestID(w)
	pid := core.ProviderID(r.PathValue("id"))

	if err := s.app.Router().CheckProvider(r.Context(), pid); err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, id, map[string]string{
		"provider": string(pid),
		"status":   "healthy",
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
