package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RowsFormatted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "table_export",
		Name:      "rows_formatted_total",
		Help:      "Total rows formatted for export.",
	})
	ChunksRendered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "table_export",
		Name:      "chunks_rendered_total",
		Help:      "Total chunks rendered into documents.",
	})
	ArtifactBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "table_export",
		Name:      "artifact_bytes_total",
		Help:      "Total bytes of rendered documents.",
	})
	ExportsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "table_export",
		Name:      "exports_completed_total",
		Help:      "Completed exports by result kind.",
	}, []string{"archive"})
	ExportsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "table_export",
		Name:      "exports_failed_total",
		Help:      "Failed exports by phase.",
	}, []string{"phase"})
)

// Init registers collectors; call once from main.
func Init() {
	prometheus.MustRegister(RowsFormatted, ChunksRendered, ArtifactBytes, ExportsCompleted, ExportsFailed)
}

// Serve starts a /metrics server on the given addr (e.g., ":9090"). Non-blocking when run in goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
