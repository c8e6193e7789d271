package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served.",
		},
		[]string{"route", "method", "status"},
	)
	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	queryRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thermo_query_requests_total",
			Help: "Total number of temperature operations issued by the HTTP service, by outcome.",
		},
		[]string{"op", "outcome"},
	)
	queryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thermo_query_duration_seconds",
			Help:    "Temperature operation latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

func observeHTTPRequest(r *http.Request, status int, dur time.Duration) {
	route := routeLabel(r.URL.Path)
	method := r.Method

	httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(route, method).Observe(dur.Seconds())
}

// observeQuery records one operation; outcome is "ok" or the failure kind.
func observeQuery(op, outcome string, dur time.Duration) {
	queryRequestsTotal.WithLabelValues(op, outcome).Inc()
	queryDurationSeconds.WithLabelValues(op).Observe(dur.Seconds())
}

func routeLabel(path string) string {
	switch path {
	case "/":
		return "index"
	case "/api/collection":
		return "api_collection"
	case "/api/list":
		return "api_list"
	case "/api/latest":
		return "api_latest"
	case "/api/average":
		return "api_average"
	case "/api/max":
		return "api_max"
	case "/api/min":
		return "api_min"
	case "/api/this-week-average":
		return "api_this_week_average"
	case "/healthz":
		return "healthz"
	case "/metrics":
		return "metrics"
	default:
		return "other"
	}
}
