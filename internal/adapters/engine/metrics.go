package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	RunsStarted      *prometheus.CounterVec
	RunsFinished     *prometheus.CounterVec
	ActiveRuns       *prometheus.GaugeVec
	EntryExecutions  *prometheus.CounterVec
	EntryDuration    *prometheus.HistogramVec
	BranchesLaunched *prometheus.CounterVec
	RunErrors        *prometheus.CounterVec
	Repeats          *prometheus.CounterVec
}

// NewMetrics builds the engine collectors and registers them with reg when
// reg is non-nil.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "jobgraph"
	}

	m := &Metrics{
		RunsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Workflow runs started.",
		}, []string{"workflow"}),
		RunsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Workflow runs finished by status.",
		}, []string{"workflow", "status"}),
		ActiveRuns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Workflow runs currently executing.",
		}, []string{"workflow"}),
		EntryExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entry_executions_total",
			Help:      "Entry executions by outcome.",
		}, []string{"workflow", "entry", "outcome"}),
		EntryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "entry_duration_seconds",
			Help:      "Entry execution wall time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"workflow", "entry"}),
		BranchesLaunched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parallel_branches_total",
			Help:      "Parallel branches launched.",
		}, []string{"workflow"}),
		RunErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_errors_total",
			Help:      "Errors added to run counters.",
		}, []string{"workflow"}),
		Repeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "start_repeats_total",
			Help:      "Start entry repetitions.",
		}, []string{"workflow"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.RunsStarted,
			m.RunsFinished,
			m.ActiveRuns,
			m.EntryExecutions,
			m.EntryDuration,
			m.BranchesLaunched,
			m.RunErrors,
			m.Repeats,
		)
	}
	return m
}

func runStatus(success, stopped bool) string {
	switch {
	case stopped:
		return "stopped"
	case success:
		return "success"
	default:
		return "failure"
	}
}
