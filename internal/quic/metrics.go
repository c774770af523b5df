package quic

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the set of Prometheus collectors the controller updates over
// its lifetime. It is registered against a caller-supplied Registerer the
// way m-lab-tcp-info wraps kernel TCP counters as Prometheus collectors,
// and the way distribution-distribution's metrics package exposes registry
// counters to its HTTP handlers.
type Metrics struct {
	packetsSent  *prometheus.CounterVec // labeled by space
	packetsAcked *prometheus.CounterVec
	packetsLost  *prometheus.CounterVec
	bytesInFlight prometheus.Gauge
	rttSample    prometheus.Histogram
	admissionRefused *prometheus.CounterVec // labeled by reason
}

// NewMetrics creates and registers the controller's metrics. reg may be
// nil, in which case metrics are created but never exposed — useful for
// tests that don't want to fight over the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		packetsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quic_sendctl",
			Name:      "packets_sent_total",
			Help:      "Packets appended to the unacked queue by packet number space.",
		}, []string{"space"}),
		packetsAcked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quic_sendctl",
			Name:      "packets_acked_total",
			Help:      "Packets (and loss records) removed from the unacked queue by an incoming ACK.",
		}, []string{"space"}),
		packetsLost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quic_sendctl",
			Name:      "packets_lost_total",
			Help:      "Packets declared lost, labeled \"detected\" (loss detector) or \"alarm\" (alarm expiry).",
		}, []string{"space", "reason"}),
		bytesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quic_sendctl",
			Name:      "bytes_in_flight",
			Help:      "sc_bytes_unacked_all: bytes of non-loss-record unacked packets.",
		}),
		rttSample: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quic_sendctl",
			Name:      "rtt_sample_seconds",
			Help:      "RTT samples delivered to the RTT stats collaborator.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}),
		admissionRefused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quic_sendctl",
			Name:      "admission_refused_total",
			Help:      "Times the admission gate refused to send, by reason.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.packetsSent,
			m.packetsAcked,
			m.packetsLost,
			m.bytesInFlight,
			m.rttSample,
			m.admissionRefused,
		)
	}
	return m
}
