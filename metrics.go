// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus counters of the acquisition loop.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	readings        prometheus.Counter
	readErrors      prometheus.Counter
	samples         prometheus.Counter
	poorSignals     prometheus.Counter
	writeErrors     prometheus.Counter
	sinkPushErrors  *prometheus.CounterVec
	sinkPushSamples *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg.
//
// Returns nil when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mindbridge",
			Name:      name,
			Help:      help,
		})
	}
	m := &Metrics{
		readings:    counter("readings_total", "Readings returned by the source"),
		readErrors:  counter("read_errors_total", "Failed or malformed source reads"),
		samples:     counter("samples_total", "Samples built from readings"),
		poorSignals: counter("poor_signal_total", "Samples reporting a very poor signal"),
		writeErrors: counter("write_errors_total", "Failed command writes to the source"),
		sinkPushErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mindbridge",
			Name:      "sink_push_errors_total",
			Help:      "Samples a sink failed to accept",
		}, []string{"sink"}),
		sinkPushSamples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mindbridge",
			Name:      "sink_push_samples_total",
			Help:      "Samples a sink accepted",
		}, []string{"sink"}),
	}
	reg.MustRegister(
		m.readings,
		m.readErrors,
		m.samples,
		m.poorSignals,
		m.writeErrors,
		m.sinkPushErrors,
		m.sinkPushSamples,
	)
	return m
}

func (m *Metrics) reading() {
	if m != nil {
		m.readings.Inc()
	}
}

func (m *Metrics) readError() {
	if m != nil {
		m.readErrors.Inc()
	}
}

func (m *Metrics) sampleBuilt() {
	if m != nil {
		m.samples.Inc()
	}
}

func (m *Metrics) poorSignal() {
	if m != nil {
		m.poorSignals.Inc()
	}
}

func (m *Metrics) writeError() {
	if m != nil {
		m.writeErrors.Inc()
	}
}

func (m *Metrics) sinkPushed(sink string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.sinkPushErrors.WithLabelValues(sink).Inc()
		return
	}
	m.sinkPushSamples.WithLabelValues(sink).Inc()
}
