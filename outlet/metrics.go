// SPDX-License-Identifier: GPL-3.0-or-later

package outlet

import "github.com/prometheus/client_golang/prometheus"

// metrics is nil when the server has no registerer.
type metrics struct {
	clients        prometheus.Gauge
	samplesPushed  prometheus.Counter
	samplesDropped prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	m := &metrics{
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mindbridge",
			Subsystem: "outlet",
			Name:      "clients_connected",
			Help:      "Number of connected websocket clients",
		}),
		samplesPushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mindbridge",
			Subsystem: "outlet",
			Name:      "samples_pushed_total",
			Help:      "Samples broadcast to the websocket clients",
		}),
		samplesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mindbridge",
			Subsystem: "outlet",
			Name:      "samples_dropped_total",
			Help:      "Messages dropped because a client queue was full",
		}),
	}
	reg.MustRegister(m.clients, m.samplesPushed, m.samplesDropped)
	return m
}

func (m *metrics) clientsChanged(count int) {
	if m != nil {
		m.clients.Set(float64(count))
	}
}

func (m *metrics) samplePushed() {
	if m != nil {
		m.samplesPushed.Inc()
	}
}

func (m *metrics) sampleDropped() {
	if m != nil {
		m.samplesDropped.Inc()
	}
}
