package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepsearch_search_requests_total",
			Help: "Search backend calls by provider and outcome",
		},
		[]string{"provider", "status"},
	)

	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepsearch_fetch_requests_total",
			Help: "Page fetches by domain, HTTP status and detected bot manager",
		},
		[]string{"domain", "status", "detection_src"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deepsearch_fetch_duration_seconds",
			Help:    "Duration of page fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	FetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepsearch_fetch_bytes_total",
			Help: "Total bytes downloaded across all page fetches",
		},
		[]string{"domain"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepsearch_page_cache_lookups_total",
			Help: "Page cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepsearch_proxy_failures_total",
			Help: "Total number of proxy failures during fetches",
		},
		[]string{"proxy_url"},
	)

	RerankDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deepsearch_rerank_duration_seconds",
			Help:    "Duration of reranking one page's fragments",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "status"},
	)

	CompletionRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepsearch_completion_requests_total",
			Help: "Completion backend calls by model and outcome",
		},
		[]string{"model", "status"},
	)

	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deepsearch_completion_duration_seconds",
			Help:    "Duration of completion calls in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"model"},
	)

	DegradationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepsearch_degradations_total",
			Help: "Pipeline steps that fell back to empty output, by kind",
		},
		[]string{"kind"},
	)
)

// Degradation kinds.
const (
	DegradeSearch  = "search_unavailable"
	DegradeFetch   = "source_fetch"
	DegradeReduce  = "content_reduction"
	DegradeProcess = "pipeline"
)

// RecordFetch updates the fetch metrics for one page request. status is the
// HTTP status, or 0 when the request never produced a response.
func RecordFetch(domain string, status int, detectionSrc string, bytes int, d time.Duration) {
	statusStr := strconv.Itoa(status)
	if status == 0 {
		statusStr = "error"
	}

	FetchRequestsTotal.WithLabelValues(domain, statusStr, detectionSrc).Inc()
	FetchDuration.WithLabelValues(domain).Observe(d.Seconds())
	FetchBytesTotal.WithLabelValues(domain).Add(float64(bytes))
}

// Outcome maps an error onto the "ok"/"error" status label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", srv.Addr, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
