package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	FetchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "harvest", Name: "fetch_requests_total", Help: "Outbound fetch attempts."},
		[]string{"source", "status"},
	)
	FetchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "harvest", Name: "fetch_duration_seconds",
			Help:    "Outbound fetch duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
	PagesFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "harvest", Name: "pages_total", Help: "Pages walked per source."},
		[]string{"source", "outcome"}, // outcome: ok|failed|skipped
	)
	ParseFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "harvest", Name: "parse_failures_total", Help: "Records or pages dropped by parsing."},
		[]string{"source"},
	)
	ReviewsCollected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "harvest", Name: "reviews_collected_total", Help: "Raw reviews accumulated per source."},
		[]string{"source"},
	)
)

// Serve exposes /metrics when addr is non-empty; a one-shot run with
// no METRICS_ADDR set gets no listener at all.
func Serve(addr string) {
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(InitRegistry()))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(FetchRequests, FetchLatency, PagesFetched, ParseFailures, ReviewsCollected)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveFetch(source string, status int, dur time.Duration) {
	FetchRequests.WithLabelValues(source, strconv.Itoa(status)).Inc()
	FetchLatency.WithLabelValues(source).Observe(dur.Seconds())
}

func ObservePage(source, outcome string) { // outcome: ok|failed|skipped
	PagesFetched.WithLabelValues(source, outcome).Inc()
}

func ObserveParseFailure(source string) {
	ParseFailures.WithLabelValues(source).Inc()
}

func ObserveReviews(source string, n int) {
	ReviewsCollected.WithLabelValues(source).Add(float64(n))
}
