// Package metrics holds the Prometheus collectors of a node.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Global metrics for the node.
// promauto registers them on the default registry at package init.

var (
	// HttpRequestsTotal counts HTTP requests by method, route template and status code.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synknode_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// HttpRequestDuration measures HTTP response time.
	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "synknode_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	// TCPRequestsTotal counts TCP requests by command and outcome.
	TCPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "synknode_tcp_requests_total",
			Help: "Total number of TCP protocol requests processed",
		},
		[]string{"command", "result"},
	)

	// TCPConnectionsActive tracks connections currently being served.
	TCPConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "synknode_tcp_connections_active",
			Help: "Number of TCP connections currently open",
		},
	)

	// SnapshotWriteDuration measures the full-file snapshot write held under the store lock.
	SnapshotWriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "synknode_snapshot_write_duration_seconds",
			Help:    "Duration of snapshot writes in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)

	// SnapshotBytes is the size of the last successful snapshot.
	SnapshotBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "synknode_snapshot_bytes",
			Help: "Size in bytes of the last snapshot written",
		},
	)

	// Keys is the number of keys in the store.
	Keys = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "synknode_keys",
			Help: "Number of keys held by the store",
		},
	)
)
