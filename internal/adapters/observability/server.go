package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eleven-am/jobgraph/internal/domain"
)

// RunInspector is the view of the engine the server exposes.
type RunInspector interface {
	Stats() domain.ExecutionMetrics
	ActiveRuns() []domain.RunSummary
	History(ctx context.Context, runID string) ([]domain.EntryOutcome, error)
	Summary(ctx context.Context, runID string) (*domain.RunSummary, error)
	StopRun(runID string) error
}

// Server serves health, metrics and run inspection endpoints over HTTP.
type Server struct {
	config    Config
	server    *http.Server
	logger    *slog.Logger
	runs      RunInspector
	gatherer  prometheus.Gatherer
	startTime time.Time
}

type HealthResponse struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Uptime     string    `json:"uptime"`
	ActiveRuns int       `json:"active_runs"`
}

type StatsResponse struct {
	Timestamp time.Time               `json:"timestamp"`
	Runtime   RuntimeMetrics          `json:"runtime"`
	Engine    domain.ExecutionMetrics `json:"engine"`
}

type RuntimeMetrics struct {
	GoVersion    string `json:"go_version"`
	NumCPU       int    `json:"num_cpu"`
	NumGoroutine int    `json:"num_goroutine"`
	HeapAlloc    uint64 `json:"heap_alloc_bytes"`
	NumGC        uint32 `json:"gc_cycles"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// NewServer creates a server over runs. A nil gatherer serves the default
// prometheus registry.
func NewServer(config Config, runs RunInspector, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		config:    config,
		logger:    logger.With("component", "observability"),
		runs:      runs,
		gatherer:  gatherer,
		startTime: time.Now(),
	}
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /live", s.handleLive)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /runs", s.handleRuns)
	mux.HandleFunc("GET /runs/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /runs/{id}/summary", s.handleSummary)
	if s.config.AllowStop {
		mux.HandleFunc("POST /runs/{id}/stop", s.handleStop)
	}

	return s.withLogging(mux)
}

// Start serves until ctx is done and then shuts the listener down.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.Info("starting observability server", "port", s.config.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("observability server error", "error", err)
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Info("shutting down observability server")
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Timestamp:  time.Now(),
		Uptime:     time.Since(s.startTime).String(),
		ActiveRuns: len(s.runs.ActiveRuns()),
	})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("live"))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s.writeJSON(w, http.StatusOK, StatsResponse{
		Timestamp: time.Now(),
		Runtime: RuntimeMetrics{
			GoVersion:    runtime.Version(),
			NumCPU:       runtime.NumCPU(),
			NumGoroutine: runtime.NumGoroutine(),
			HeapAlloc:    mem.HeapAlloc,
			NumGC:        mem.NumGC,
		},
		Engine: s.runs.Stats(),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.runs.ActiveRuns())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	outcomes, err := s.runs.History(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, outcomes)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runs.Summary(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if err := s.runs.StopRun(runID); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("run stopped over http", "run_id", runID)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, domain.ErrNotFound) {
		status = http.StatusNotFound
	}

	resp := errorResponse{Error: err.Error()}
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
