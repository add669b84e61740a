package circuitbreaker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	vendorModelHealthy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "llm_vendor_model_healthy",
			Help: "Circuit breaker health for a (vendor, model) key (1 closed/half-open, 0 open).",
		},
		[]string{"vendor_model"},
	)
	vendorModelCheckLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_vendor_model_check_latency_ms",
			Help:    "Latency of the call that triggered a circuit breaker state observation.",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"vendor_model"},
	)
	vendorModelFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_vendor_model_failures_total",
			Help: "Total classified failures observed per (vendor, model) key.",
		},
		[]string{"vendor_model"},
	)
)

func init() {
	prometheus.MustRegister(vendorModelHealthy, vendorModelCheckLatencyMs, vendorModelFailuresTotal)
}

func observeProviderHealthCheck(key string, healthy bool, latency time.Duration, err error) {
	if key == "" {
		key = "unknown"
	}
	if healthy {
		vendorModelHealthy.WithLabelValues(key).Set(1)
	} else {
		vendorModelHealthy.WithLabelValues(key).Set(0)
	}
	if latency > 0 {
		vendorModelCheckLatencyMs.WithLabelValues(key).Observe(float64(latency.Milliseconds()))
	}
	if err != nil {
		vendorModelFailuresTotal.WithLabelValues(key).Inc()
	}
}
