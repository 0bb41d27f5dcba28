package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/report"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReportSource exposes the most recently built report.
type ReportSource interface {
	sharedobs.ReadinessChecker
	Latest() *report.Report
}

// Server exposes health, readiness, metrics, and report HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /reports/latest routes.
func NewServer(addr string, reports ReportSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(reports))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /reports/latest", handleLatest(reports))

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

// handleLatest serves the last report. The optional metric query parameter
// keeps only that metric's figures.
func handleLatest(reports ReportSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep := reports.Latest()
		if rep == nil {
			sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  "no report has been built yet",
			})
			return
		}

		metric := r.URL.Query().Get("metric")
		if metric == "" {
			sharedobs.WriteJSON(w, http.StatusOK, rep)
			return
		}
		if _, err := report.LookupMetric(metric); err != nil {
			sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		filtered := *rep
		filtered.Figures = nil
		for _, fig := range rep.Figures {
			if fig.Metric == metric {
				filtered.Figures = append(filtered.Figures, fig)
			}
		}
		filtered.Skipped = nil
		for _, sk := range rep.Skipped {
			if sk.Metric == metric {
				filtered.Skipped = append(filtered.Skipped, sk)
			}
		}
		sharedobs.WriteJSON(w, http.StatusOK, &filtered)
	}
}
