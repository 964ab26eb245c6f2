// Package metrics exposes Prometheus collectors for the moderation pipeline.
//
// Labels are bounded: detector is one of the classifier's fixed detector
// names, kind is "single" or "bulk", and outcome is a roles outcome string.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	verdicts       *prometheus.CounterVec
	deletions      *prometheus.CounterVec
	deleteFailures *prometheus.CounterVec
	roleActions    *prometheus.CounterVec
	windowSize     prometheus.Gauge
	pendingDeletes prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		verdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_verdicts_total",
				Help: "Messages acted on, by detector.",
			},
			[]string{"detector"},
		),
		deletions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_delete_requests_total",
				Help: "Delete API calls issued, by kind.",
			},
			[]string{"kind"},
		),
		deleteFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_delete_failures_total",
				Help: "Delete API calls that failed, by kind.",
			},
			[]string{"kind"},
		),
		roleActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_role_actions_total",
				Help: "Role and punishment actions, by action and outcome.",
			},
			[]string{"action", "outcome"},
		),
		windowSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "warden_history_window_entries",
			Help: "Messages currently held in the history window.",
		}),
		pendingDeletes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "warden_pending_deletions",
			Help: "Message ids queued for deletion and not yet sent.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.verdicts, m.deletions, m.deleteFailures, m.roleActions, m.windowSize, m.pendingDeletes)
	}
	return m
}

func (m *Metrics) Verdict(detector string) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(detector).Inc()
}

func (m *Metrics) DeleteRequest(kind string) {
	if m == nil {
		return
	}
	m.deletions.WithLabelValues(kind).Inc()
}

func (m *Metrics) DeleteFailure(kind string) {
	if m == nil {
		return
	}
	m.deleteFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) RoleAction(action, outcome string) {
	if m == nil {
		return
	}
	m.roleActions.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) WindowSize(n int) {
	if m == nil {
		return
	}
	m.windowSize.Set(float64(n))
}

func (m *Metrics) PendingDeletes(delta int) {
	if m == nil {
		return
	}
	m.pendingDeletes.Add(float64(delta))
}
