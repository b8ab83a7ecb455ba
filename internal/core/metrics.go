package core

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks dispatch and supervision counters
type Metrics struct {
	mu sync.Mutex

	commandsTotal *prometheus.CounterVec
	deathsTotal   *prometheus.CounterVec
	instances     *prometheus.GaugeVec

	registerer prometheus.Registerer
	registered bool
}

// NewMetrics creates the collectors. A nil registerer means the default one.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		registerer: registerer,
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hashbang",
			Name:      "commands_dispatched_total",
			Help:      "Total number of requests dispatched to a handler",
		}, []string{"instance", "kind"}),
		deathsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hashbang",
			Name:      "instance_deaths_total",
			Help:      "Total number of unexpected instance disconnects",
		}, []string{"instance"}),
		instances: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hashbang",
			Name:      "instances",
			Help:      "Number of supervised instances by state",
		}, []string{"state"}),
	}
}

// Register registers the collectors. Safe to call multiple times.
func (m *Metrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	for _, c := range []prometheus.Collector{m.commandsTotal, m.deathsTotal, m.instances} {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// RecordDispatch counts one dispatched request
func (m *Metrics) RecordDispatch(instance, kind string) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(instance, kind).Inc()
}

// RecordDeath counts one unexpected instance death
func (m *Metrics) RecordDeath(instance string) {
	if m == nil {
		return
	}
	m.deathsTotal.WithLabelValues(instance).Inc()
}

// ObserveSnapshot sets the per-state instance gauges
func (m *Metrics) ObserveSnapshot(s Snapshot) {
	if m == nil {
		return
	}
	m.instances.WithLabelValues(string(StateConnected)).Set(float64(len(s.Connected)))
	m.instances.WithLabelValues(string(StateUnused)).Set(float64(len(s.Unused)))
	m.instances.WithLabelValues(string(StateDead)).Set(float64(len(s.Dead)))
}
