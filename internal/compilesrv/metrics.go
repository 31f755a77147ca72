package compilesrv

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus instruments of a Service.
type Metrics struct {
	requests  *prometheus.CounterVec
	cacheHits prometheus.Counter
	duration  prometheus.Histogram
	inFlight  prometheus.Gauge
}

// NewMetrics registers the instruments with reg. A nil reg creates
// unregistered instruments.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "graphcraft_compile_requests_total",
			Help: "Compile requests by outcome.",
		}, []string{"outcome"}),
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "graphcraft_compile_cache_hits_total",
			Help: "Compile requests answered from the artifact cache.",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "graphcraft_compile_duration_seconds",
			Help:    "Toolchain run time of cache misses.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "graphcraft_compile_in_flight",
			Help: "Toolchain runs in progress.",
		}),
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if ce, ok := err.(*CompileError); ok {
		switch ce.Kind {
		case KindBadRequest:
			return "bad_request"
		case KindDiagnostics:
			return "diagnostics"
		case KindTimeout:
			return "timeout"
		}
	}
	return "error"
}
