// Copyright (c) 2025 vtrunkd authors
// Licensed under AGPL-3.0 - see LICENSE file for details
// WireGuard® is a registered trademark of Jason A. Donenfeld.

// Package metrics instruments the datapath with Prometheus counters and
// gauges: per-link sends and drops, control-datagram drops, link
// availability, and handshake age.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector the orchestrator registers.
type Metrics struct {
	Sends          *prometheus.CounterVec
	Drops          *prometheus.CounterVec
	ControlDropped prometheus.Counter
	LinkAvailable  *prometheus.GaugeVec
	HandshakeAge   prometheus.Gauge
}

// New constructs and registers all vtrunkd collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vtrunkd",
			Name:      "link_sends_total",
			Help:      "Datagrams sent per link.",
		}, []string{"link"}),
		Drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vtrunkd",
			Name:      "egress_drops_total",
			Help:      "Outbound datagrams dropped, by reason (no available link, no destination, send error).",
		}, []string{"reason"}),
		ControlDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vtrunkd",
			Name:      "control_datagrams_dropped_total",
			Help:      "Inbound datagrams dropped by the classifier.",
		}),
		LinkAvailable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "vtrunkd",
			Name:      "link_available",
			Help:      "1 if the link is currently available, 0 otherwise.",
		}, []string{"link"}),
		HandshakeAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vtrunkd",
			Name:      "handshake_age_seconds",
			Help:      "Seconds since the last completed WireGuard handshake.",
		}),
	}

	reg.MustRegister(m.Sends, m.Drops, m.ControlDropped, m.LinkAvailable, m.HandshakeAge)
	return m
}

// RecordSend implements linkmgr.SendRecorder.
func (m *Metrics) RecordSend(link string) { m.Sends.WithLabelValues(link).Inc() }

// RecordDrop implements linkmgr.SendRecorder.
func (m *Metrics) RecordDrop(reason string) { m.Drops.WithLabelValues(reason).Inc() }

// RecordControlDrop implements linkmgr.ControlRecorder.
func (m *Metrics) RecordControlDrop() { m.ControlDropped.Inc() }

// SetHandshakeAge implements the orchestrator's periodic handshake-age
// refresh; age is negative when no handshake has completed yet.
func (m *Metrics) SetHandshakeAge(age float64) { m.HandshakeAge.Set(age) }
