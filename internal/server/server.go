// Package server exposes the operational HTTP surface of a planning run:
// Prometheus metrics and a cache health check.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"turf-assistant/internal/database"
	"turf-assistant/internal/metrics"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Server wraps the HTTP server and its dependencies
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	addr       string
}

// Config holds server configuration
type Config struct {
	Addr    string // e.g., "127.0.0.1:9090" or "127.0.0.1:0" for random port
	Metrics *metrics.Collector
	Store   database.DataStore
}

// New creates a server (does not start it)
func New(cfg Config) (*Server, error) {
	if cfg.Metrics == nil {
		return nil, fmt.Errorf("server: metrics collector is required")
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      loggingMiddleware(Routes(cfg.Metrics, cfg.Store)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		addr:       cfg.Addr,
	}, nil
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	log.Printf("Starting metrics server on %s", actualAddr)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	return actualAddr, nil
}

// Shutdown gracefully shuts down the server. The store is owned by the caller.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Routes returns the mux serving /metrics and /api/v1/health. store may be nil.
func Routes(collector *metrics.Collector, store database.DataStore) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handleHealthCheck(w, r, store)
	})
	return mux
}

func handleHealthCheck(w http.ResponseWriter, r *http.Request, store database.DataStore) {
	status := "ok"
	dbStatus := "connected"

	switch {
	case store == nil:
		dbStatus = "disabled"
	case store.HealthCheck(r.Context()) != nil:
		status = "degraded"
		dbStatus = "error"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   status,
		"version":  Version,
		"database": dbStatus,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[ERROR] Failed to encode response: %v", err)
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		log.Printf("%s %s %d %v", r.Method, r.URL.Path, lrw.statusCode, time.Since(start))
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}
