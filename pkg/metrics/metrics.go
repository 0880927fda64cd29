// Package metrics provides performance tracking and observability for the
// Odoo RPC client using Prometheus metrics.
//
// # Basic Usage
//
//	// Record a finished RPC call
//	metrics.RPCCallsTotal.WithLabelValues("object", "execute_kw", "success").Inc()
//
//	// Track call latency
//	timer := metrics.NewTimer("execute_kw")
//	doCall()
//	duration := timer.Stop()
//	metrics.RPCLatency.WithLabelValues("object", "execute_kw").Observe(duration.Seconds())
//
// # Metric Types
//
// Counter: monotonically increasing values (e.g. total RPC calls)
// Gauge: values that can go up or down (e.g. in-flight calls, dirty records)
// Histogram: distribution of values (e.g. latency percentiles)
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCCallsTotal tracks the total number of RPC calls issued.
	// Labels: service (common/object/report), method, status (success/failure)
	//
	// Example:
	//	metrics.RPCCallsTotal.WithLabelValues("object", "execute_kw", "success").Inc()
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odoorpc_calls_total",
			Help: "Total number of RPC calls issued",
		},
		[]string{"service", "method", "status"},
	)

	// RPCLatency tracks the distribution of RPC round-trip latencies in seconds.
	// Labels: service, method
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "odoorpc_call_duration_seconds",
			Help: "RPC round-trip latency in seconds",
			Buckets: []float64{
				0.005, // local network fast path
				0.01,
				0.025,
				0.05,
				0.1,
				0.25,
				0.5,
				1,
				2.5,
				5,
				10, // report rendering, large reads
			},
		},
		[]string{"service", "method"},
	)

	// RPCInFlight tracks the number of RPC calls currently in flight.
	RPCInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "odoorpc_calls_in_flight",
			Help: "Number of RPC calls currently in flight",
		},
	)

	// RPCPayloadBytes tracks request and response payload sizes.
	// Labels: direction (request/response)
	RPCPayloadBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "odoorpc_payload_bytes",
			Help:    "RPC payload size in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 4, 10),
		},
		[]string{"direction"},
	)

	// DirtyRecords tracks the number of records with staged, uncommitted
	// field mutations per database.
	DirtyRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "odoorpc_dirty_records",
			Help: "Number of records with staged uncommitted changes",
		},
		[]string{"database"},
	)

	// RegistrySize tracks the number of memoized model proxies per database.
	RegistrySize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "odoorpc_registry_models",
			Help: "Number of model proxies held in the registry",
		},
		[]string{"database"},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs or metrics.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop returns the elapsed time since the timer was created.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// Name returns the timer identifier.
func (t *Timer) Name() string {
	return t.name
}

// ObserveRPC records a finished RPC call in one shot.
func ObserveRPC(service, method string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	RPCCallsTotal.WithLabelValues(service, method, status).Inc()
	RPCLatency.WithLabelValues(service, method).Observe(duration.Seconds())
}
