package executor

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

var (
	tracer = otel.Tracer("graphcraft/executor")
	meter  = otel.Meter("graphcraft/executor")
)

type metricSet struct {
	executions   metric.Int64Counter
	nodeRuns     metric.Int64Counter
	nodeFailures metric.Int64Counter
	cacheHits    metric.Int64Counter
	nodeDuration metric.Float64Histogram
}

var (
	metricsOnce sync.Once
	metrics     *metricSet
)

// instruments lazily creates the metric instruments. An instrument that
// cannot be created is replaced by a no-op one.
func instruments() *metricSet {
	metricsOnce.Do(func() {
		fallback := noop.NewMeterProvider().Meter("graphcraft/executor")
		counter := func(name, desc string) metric.Int64Counter {
			c, err := meter.Int64Counter(name, metric.WithDescription(desc))
			if err != nil {
				c, _ = fallback.Int64Counter(name)
			}
			return c
		}
		hist, err := meter.Float64Histogram("graphcraft_node_duration_seconds",
			metric.WithDescription("Time spent in node implementations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			hist, _ = fallback.Float64Histogram("graphcraft_node_duration_seconds")
		}
		metrics = &metricSet{
			executions:   counter("graphcraft_executions_total", "Number of network executions"),
			nodeRuns:     counter("graphcraft_node_runs_total", "Number of node implementation calls"),
			nodeFailures: counter("graphcraft_node_failures_total", "Number of failed node implementation calls"),
			cacheHits:    counter("graphcraft_cache_hits_total", "Number of node values served from the cache"),
			nodeDuration: hist,
		}
	})
	return metrics
}
