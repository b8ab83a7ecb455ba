package core

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NoError(t, m.Register())
	require.NoError(t, m.Register())

	// a second collector set on the same registry is tolerated
	require.NoError(t, NewMetrics(reg).Register())
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, m.Register())

	m.RecordDispatch("libera", "plain")
	m.RecordDispatch("libera", "plain")
	m.RecordDispatch("libera", "control")
	m.RecordDeath("oftc")
	m.ObserveSnapshot(Snapshot{Connected: []string{"a", "b"}, Dead: []string{"c"}})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("libera", "plain")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("libera", "control")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deathsTotal.WithLabelValues("oftc")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.instances.WithLabelValues("connected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.instances.WithLabelValues("unused")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.instances.WithLabelValues("dead")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordDispatch("a", "plain")
		m.RecordDeath("a")
		m.ObserveSnapshot(Snapshot{})
	})
}
