package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Krugou/aurorawatcher/internal/history"
	"github.com/Krugou/aurorawatcher/internal/sightings"
	"github.com/Krugou/aurorawatcher/internal/watcher"
)

// Server is the REST API server.
type Server struct {
	httpServer *http.Server
	handlers   *Handlers
	hub        *Hub
	metrics    *Metrics
}

// NewServer creates a new API server with all routes registered.
func NewServer(hist *history.Store, sight sightings.Store, w *watcher.Watcher, solar SolarClient, logger *slog.Logger) *Server {
	h := &Handlers{
		History:   hist,
		Sightings: sight,
		Watcher:   w,
		Solar:     solar,
		Logger:    logger,
		StartTime: time.Now(),
	}

	hub := NewHub(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := NewMetrics(reg)

	mux := http.NewServeMux()

	// API routes.
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/summary", h.Summary)
	mux.HandleFunc("GET /api/v1/stations", h.ListStations)
	mux.HandleFunc("GET /api/v1/stations/nearest", h.NearestStation)
	mux.HandleFunc("GET /api/v1/history", h.HistoryEntries)
	mux.HandleFunc("GET /api/v1/sightings", h.ListSightings)
	mux.HandleFunc("POST /api/v1/sightings", h.ReportSighting)
	mux.HandleFunc("GET /api/v1/solarwind", h.SolarWind)
	mux.Handle("GET /api/v1/live", hub)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Apply middleware (outermost runs first).
	var handler http.Handler = mux
	handler = SecurityHeaders(handler)
	handler = CORS("")(handler) // Empty string disables CORS headers.
	handler = Logger(logger)(handler)
	handler = RequestID(handler)
	handler = Recovery(logger)(handler)

	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: srv, handlers: h, hub: hub, metrics: metrics}
}

// OnSummary returns the callback set that wires a watcher's completed runs
// into the live feed and the run metrics.
func (s *Server) OnSummary(summary watcher.Summary) {
	s.metrics.Observe(summary)
	s.hub.Publish(summary)
}

// ListenAndServe starts the HTTP server. Blocks until context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpServer.Addr = addr
	slog.Info("api server starting", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// SetVersion sets the version string for the health endpoint.
func (s *Server) SetVersion(v string) { s.handlers.Version = v }

// SetStorageInfo sets storage driver and path for the health endpoint.
func (s *Server) SetStorageInfo(driver, path string) {
	s.handlers.StorageDriver = driver
	s.handlers.StoragePath = path
}
