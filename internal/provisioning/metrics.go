package provisioning

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Resource actions counted by Metrics.
const (
	ActionCreated = "created"
	ActionExists  = "exists"
	ActionDeleted = "deleted"
	ActionFailed  = "failed"
)

// Metrics holds the provisioning collectors and the registry they live in.
// All methods are safe on a nil receiver.
type Metrics struct {
	Registry *prometheus.Registry

	phaseDuration  *prometheus.HistogramVec
	resourcesTotal *prometheus.CounterVec
	lifecycleState *prometheus.GaugeVec
}

// NewMetrics creates collectors registered in a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "minisc",
				Subsystem: "provisioning",
				Name:      "phase_duration_seconds",
				Help:      "Duration of provisioning phases in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12), // 500ms to ~17min
			},
			[]string{"cluster", "phase", "result"},
		),
		resourcesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "minisc",
				Subsystem: "provisioning",
				Name:      "resources_total",
				Help:      "Provider resources touched by kind and action",
			},
			[]string{"cluster", "kind", "action"},
		),
		lifecycleState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "minisc",
				Subsystem: "cluster",
				Name:      "lifecycle_state",
				Help:      "Current lifecycle state of a cluster (1 for the active state)",
			},
			[]string{"cluster", "state"},
		),
	}
	m.Registry.MustRegister(m.phaseDuration, m.resourcesTotal, m.lifecycleState)
	return m
}

// ObservePhase records how long a phase took and whether it failed.
func (m *Metrics) ObservePhase(cluster, phase string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.phaseDuration.WithLabelValues(cluster, phase, result).Observe(d.Seconds())
}

// CountResource records one resource action.
func (m *Metrics) CountResource(cluster, kind, action string) {
	if m == nil {
		return
	}
	m.resourcesTotal.WithLabelValues(cluster, kind, action).Inc()
}

// SetState marks state as the active lifecycle state and clears the others.
func (m *Metrics) SetState(cluster, state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.lifecycleState.WithLabelValues(cluster, s).Set(v)
	}
}
