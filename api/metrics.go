package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/warp/scaffold-engine/ledger"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scaffold_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scaffold_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	movementsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scaffold_movements_recorded_total",
			Help: "Movements appended to the ledger",
		},
		[]string{"kind"},
	)

	movementsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scaffold_movements_rejected_total",
			Help: "Movements refused by the quantity rules",
		},
		[]string{"kind"},
	)
)

// Metrics records request counts and durations per route pattern.
// The pattern is read after routing so /equipment/7 and /equipment/8
// share one series.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func countRecorded(kind ledger.Kind, n int) {
	if n > 0 {
		movementsRecorded.WithLabelValues(string(kind)).Add(float64(n))
	}
}

func countRejected(kind ledger.Kind, n int) {
	if n > 0 {
		movementsRejected.WithLabelValues(string(kind)).Add(float64(n))
	}
}
