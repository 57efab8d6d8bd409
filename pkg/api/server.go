// Package api provides HTTP endpoints for cache statistics and health
// monitoring.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tiercache/tiercache/pkg/types"
)

// healthCheckTimeout bounds the store probe behind /health/ready.
const healthCheckTimeout = 5 * time.Second

// StatsSource exposes a named cache's counters to the server. Every cache
// in this module satisfies it.
type StatsSource interface {
	Stats() types.CacheStats
}

// HotKeySource is implemented by sources that rank keys by access count.
// Sources without it are skipped by the hot-key endpoint.
type HotKeySource interface {
	HotKeyCounts(limit int) []types.KeyCount
}

// Server provides HTTP endpoints for monitoring registered caches
type Server struct {
	httpServer *http.Server
	logger     *zap.SugaredLogger
	config     ServerConfig
	store      types.Store
	gatherer   prometheus.Gatherer
	startTime  time.Time

	mu      sync.RWMutex
	sources map[string]StatsSource
}

// ServerConfig configures the API server
type ServerConfig struct {
	// Address to bind the server to (e.g., "localhost:8600")
	Address string `yaml:"address" json:"address"`

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// WriteTimeout is the maximum duration for writing the response
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// IdleTimeout is the maximum duration to wait for the next request
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// EnableCORS enables Cross-Origin Resource Sharing
	EnableCORS bool `yaml:"enable_cors" json:"enable_cors"`

	// EnableMetrics mounts the Prometheus metrics endpoint
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:       "localhost:8600",
		ReadTimeout:   10 * time.Second,
		WriteTimeout:  10 * time.Second,
		IdleTimeout:   60 * time.Second,
		EnableCORS:    true,
		EnableMetrics: true,
	}
}

// NewServer creates a new API server. The store backs the readiness probe
// and may be nil; a nil gatherer falls back to the default Prometheus
// registry; a nil logger disables logging.
func NewServer(config ServerConfig, store types.Store, gatherer prometheus.Gatherer, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		logger:    logger,
		config:    config,
		store:     store,
		gatherer:  gatherer,
		startTime: time.Now(),
		sources:   make(map[string]StatsSource),
	}

	mux := http.NewServeMux()

	// Cache endpoints
	mux.HandleFunc("/cache/stats", s.handleStats)
	mux.HandleFunc("/cache/hotkeys", s.handleHotKeys)

	// Health endpoints
	mux.HandleFunc("/health/live", s.handleLiveness)
	mux.HandleFunc("/health/ready", s.handleReadiness)

	// Metrics endpoint (if enabled)
	if config.EnableMetrics {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
			ErrorLog: zap.NewStdLog(logger.Desugar()),
		}))
	}

	// Info endpoint
	mux.HandleFunc("/info", s.handleInfo)

	// Apply middleware
	handler := s.loggingMiddleware(mux)
	if config.EnableCORS {
		handler = s.corsMiddleware(handler)
	}

	s.httpServer = &http.Server{
		Addr:         config.Address,
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s
}

// RegisterSource exposes a cache's statistics under the given name. A
// second registration with the same name replaces the first.
func (s *Server) RegisterSource(name string, source StatsSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[name] = source
}

// UnregisterSource removes a previously registered source.
func (s *Server) UnregisterSource(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sources, name)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Infow("starting api server", "address", s.config.Address)
	return s.httpServer.ListenAndServe()
}

// StartBackground starts the server in a background goroutine
func (s *Server) StartBackground() {
	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorw("api server error", "error", err)
		}
	}()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("shutting down api server")
	return s.httpServer.Shutdown(ctx)
}

// Cache endpoint handlers

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stats := make(map[string]types.CacheStats)
	s.mu.RLock()
	for name, source := range s.sources {
		stats[name] = source.Stats()
	}
	s.mu.RUnlock()

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"caches":    stats,
		"count":     len(stats),
		"timestamp": time.Now(),
	})
}

func (s *Server) handleHotKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Get limit from query parameter (default 10)
	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if _, err := fmt.Sscanf(limitStr, "%d", &limit); err != nil || limit <= 0 {
			limit = 10
		}
	}

	hotkeys := make(map[string][]types.KeyCount)
	s.mu.RLock()
	for name, source := range s.sources {
		if ranker, ok := source.(HotKeySource); ok {
			hotkeys[name] = ranker.HotKeyCounts(limit)
		}
	}
	s.mu.RUnlock()

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"hotkeys":   hotkeys,
		"limit":     limit,
		"timestamp": time.Now(),
	})
}

// Health endpoint handlers

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Liveness probe - is the service running?
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"alive":     true,
		"timestamp": time.Now(),
	})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Readiness probe - can the persistent tier accept traffic?
	if s.store == nil {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"ready":     true,
			"timestamp": time.Now(),
			"note":      "No persistent tier configured",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.store.HealthCheck(ctx); err != nil {
		s.logger.Warnw("readiness check failed", "error", err)
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"ready":     false,
			"error":     err.Error(),
			"timestamp": time.Now(),
		})
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"ready":     true,
		"timestamp": time.Now(),
	})
}

// Info endpoint

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	endpoints := []string{
		"/cache/stats",
		"/cache/hotkeys",
		"/health/live",
		"/health/ready",
		"/info",
	}
	if s.config.EnableMetrics {
		endpoints = append(endpoints, "/metrics")
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service":   "tiercache",
		"version":   "0.1.0",
		"uptime":    time.Since(s.startTime).String(),
		"timestamp": time.Now(),
		"endpoints": endpoints,
	})
}

// Middleware

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debugw("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Helper methods

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warnw("failed to encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, map[string]interface{}{
		"error":     message,
		"timestamp": time.Now(),
	})
}
