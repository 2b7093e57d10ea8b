// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A nil *Metrics records nothing and does not panic.
func TestMetricsNil(t *testing.T) {
	var m *Metrics
	assert.Nil(t, NewMetrics(nil))

	assert.NotPanics(t, func() {
		m.reading()
		m.readError()
		m.sampleBuilt()
		m.poorSignal()
		m.writeError()
		m.sinkPushed("file", nil)
		m.sinkPushed("file", errors.New("disk full"))
	})
}

// NewMetrics registers every counter with the registry.
func TestMetricsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NotNil(t, m)

	m.reading()
	m.readError()
	m.writeError()
	m.sinkPushed("stream", nil)
	m.sinkPushed("file", errors.New("disk full"))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sinkPushSamples.WithLabelValues("stream")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sinkPushErrors.WithLabelValues("file")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.sinkPushErrors.WithLabelValues("stream")))
}
