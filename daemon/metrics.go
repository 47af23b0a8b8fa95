package daemon

import (
	"dynosaur/updater"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "dynosaur"
	subsystem = "daemon"
)

type metrics struct {
	ticks          prometheus.Counter
	fetchFailures  prometheus.Counter
	updateFailures prometheus.Counter
	updatesApplied prometheus.Counter
	lastUpdate     prometheus.Gauge
}

func newMetrics(subject updater.SubjectRecord) *metrics {
	labels := prometheus.Labels{"record": subject.Name(), "type": subject.Type()}

	return &metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "ticks_total",
			Help:        "Number of reconciliations started.",
			ConstLabels: labels,
		}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "fetch_failures_total",
			Help:        "Number of reconciliations that failed to fetch the current address.",
			ConstLabels: labels,
		}),
		updateFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "update_failures_total",
			Help:        "Number of reconciliations that failed to update the record.",
			ConstLabels: labels,
		}),
		updatesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "updates_applied_total",
			Help:        "Number of addresses successfully applied to the record.",
			ConstLabels: labels,
		}),
		lastUpdate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "last_update_timestamp_seconds",
			Help:        "Unix time of the last successful update.",
			ConstLabels: labels,
		}),
	}
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.ticks, m.fetchFailures, m.updateFailures, m.updatesApplied, m.lastUpdate}
}

func (m *metrics) register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
