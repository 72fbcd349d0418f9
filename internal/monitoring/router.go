package monitoring

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kvbench/internal/logging"
)

// NewRouter serves the health check, the progress view and the metrics of p.
func NewRouter(p *Progress, logger *logging.Logger, metricsPath string) *mux.Router {
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	router := mux.NewRouter()
	router.Use(logging.RequestLoggingMiddleware(logger))

	// Full paths on the top-level router: a PathPrefix subrouter reports a
	// method mismatch as 404 instead of 405.
	router.HandleFunc("/health", healthHandler(p)).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/health", healthHandler(p)).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/progress", progressHandler(p)).Methods(http.MethodGet)

	router.Handle(metricsPath, promhttp.HandlerFor(p.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return router
}

// HealthResponse is served by /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Phase     string    `json:"phase"`
	RunID     string    `json:"run_id,omitempty"`
	Uptime    float64   `json:"uptime_seconds"`
	Timestamp time.Time `json:"timestamp"`
}

func healthHandler(p *Progress) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := p.Snapshot()
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:    "healthy",
			Phase:     snap.Phase,
			RunID:     snap.RunID,
			Uptime:    snap.Uptime.Seconds(),
			Timestamp: time.Now(),
		})
	}
}

func progressHandler(p *Progress) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, p.Snapshot())
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
