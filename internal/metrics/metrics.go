// Package metrics holds the Prometheus collectors of the map core and the transport.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AreaCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chronomap_area_cache_hits_total",
		Help: "Area data loads served from the in-memory year cache",
	})
	AreaCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chronomap_area_cache_misses_total",
		Help: "Area data loads that went to the network",
	})
	FetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chronomap_fetch_total",
		Help: "Store fetches by resource kind and outcome (ok, error, canceled)",
	}, []string{"kind", "outcome"})
	FetchDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chronomap_fetch_duration_ms",
		Help:    "Store fetch duration in milliseconds",
		Buckets: []float64{5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000},
	}, []string{"kind"})
	OutlineTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chronomap_outline_total",
		Help: "Entity outline computations by outcome (ok, empty, rejected, failed)",
	}, []string{"outcome"})
	LabelRecomputeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chronomap_label_recompute_total",
		Help: "Label placement recomputations by dimension",
	}, []string{"dimension"})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chronomap_http_requests_total",
		Help: "Transport HTTP requests by status class",
	}, []string{"status"})
	ResponseCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chronomap_response_cache_hits_total",
		Help: "Transport responses served from redis",
	})
	ResponseCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chronomap_response_cache_misses_total",
		Help: "Transport responses not found in redis",
	})
)

func init() {
	prometheus.MustRegister(AreaCacheHits)
	prometheus.MustRegister(AreaCacheMisses)
	prometheus.MustRegister(FetchTotal)
	prometheus.MustRegister(FetchDurationMs)
	prometheus.MustRegister(OutlineTotal)
	prometheus.MustRegister(LabelRecomputeTotal)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(ResponseCacheHits)
	prometheus.MustRegister(ResponseCacheMisses)
}

// Handler serves the registered collectors for scraping.
func Handler() http.Handler { return promhttp.Handler() }
