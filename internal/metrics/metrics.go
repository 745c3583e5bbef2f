// Package metrics registers the real-time loop's health counters as
// Prometheus collectors, exposed over HTTP by internal/controlplane.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldbusd_cycles_total",
		Help: "Total real-time cycles completed.",
	})

	ConsecutiveTxRxFailures = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fieldbusd_consecutive_txrx_failures",
		Help: "Current consecutive TX/RX failure count, reset to zero on success.",
	})

	CycleJitterSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fieldbusd_cycle_jitter_seconds",
		Help:    "Magnitude of cycle start deviation from the configured cycle target.",
		Buckets: []float64{50e-6, 100e-6, 200e-6, 500e-6, 1e-3, 5e-3},
	})

	MachinesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fieldbusd_machines_active",
		Help: "Number of machine instances currently running in the real-time loop.",
	})
)
