package bootstrap

import (
	"time"

	"github.com/kart-io/legalstudy/pkg/observability/metrics"
)

// Metrics holds the bootstrap collectors. A nil *Metrics records nothing.
type Metrics struct {
	phases    metrics.CounterVec
	durations metrics.HistogramVec
	ready     metrics.GaugeVec
	runs      metrics.CounterVec
}

// NewMetrics registers the bootstrap collectors in reg, reusing collectors
// that an earlier call already registered.
func NewMetrics(reg *metrics.Registry) *Metrics {
	if reg == nil {
		reg = metrics.DefaultRegistry
	}
	return &Metrics{
		phases: reg.Register(metrics.NewCounterVec(
			"bootstrap_phase_total", "Lifecycle phase executions by outcome.",
		)).(metrics.CounterVec),
		durations: reg.Register(metrics.NewHistogramVec(
			"bootstrap_phase_duration_seconds", "Lifecycle phase duration.", nil,
		)).(metrics.HistogramVec),
		ready: reg.Register(metrics.NewGaugeVec(
			"bootstrap_subsystem_ready", "1 when the subsystem is initialized and not failed.",
		)).(metrics.GaugeVec),
		runs: reg.Register(metrics.NewCounterVec(
			"bootstrap_runs_total", "InitializeAll runs by readiness outcome.",
		)).(metrics.CounterVec),
	}
}

func (m *Metrics) observePhase(subsystem, phase string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.phases.With(map[string]string{"subsystem": subsystem, "phase": phase, "outcome": outcome}).Inc()
	m.durations.With(map[string]string{"subsystem": subsystem, "phase": phase}).Observe(d.Seconds())
}

func (m *Metrics) observeRun(r *Report) {
	if m == nil {
		return
	}
	for _, s := range r.Subsystems {
		v := 0.0
		if s.Status.Ready() {
			v = 1
		}
		m.ready.With(map[string]string{"subsystem": s.Name}).Set(v)
	}
	outcome := "not_ready"
	if r.Ready {
		outcome = "ready"
	}
	m.runs.With(map[string]string{"outcome": outcome}).Inc()
}
