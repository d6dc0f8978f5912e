// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Craft outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	// PacketsCraftedTotal counts Stack.Build calls by outcome
	PacketsCraftedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktcraft_packets_crafted_total",
			Help: "Total number of packet stacks crafted",
		},
		[]string{"outcome"},
	)

	// PacketsSentTotal counts frames accepted by a backend
	PacketsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktcraft_packets_sent_total",
			Help: "Total number of packets handed to a backend",
		},
		[]string{"backend"},
	)

	// BackendErrorsTotal counts frames a backend refused or failed to send
	BackendErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pktcraft_backend_errors_total",
			Help: "Total number of backend send errors",
		},
		[]string{"backend"},
	)

	// PacketBytes tracks the size distribution of crafted packets
	PacketBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pktcraft_packet_bytes",
			Help:    "Size of crafted packets in bytes",
			Buckets: prometheus.ExponentialBuckets(20, 2, 12), // 20B to ~40KiB
		},
	)
)

// ObserveCraft records the result of one Build.
func ObserveCraft(size int, err error) {
	if err != nil {
		PacketsCraftedTotal.WithLabelValues(OutcomeError).Inc()
		return
	}
	PacketsCraftedTotal.WithLabelValues(OutcomeOK).Inc()
	PacketBytes.Observe(float64(size))
}

// ObserveSend records the result of one backend send.
func ObserveSend(backend string, err error) {
	if err != nil {
		BackendErrorsTotal.WithLabelValues(backend).Inc()
		return
	}
	PacketsSentTotal.WithLabelValues(backend).Inc()
}
