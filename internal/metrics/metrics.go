package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ApplicationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intakedb_application_transitions_total",
			Help: "Total number of committed application status transitions",
		},
		[]string{"from", "to"},
	)

	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intakedb_validation_failures_total",
			Help: "Total number of payloads rejected by form validation",
		},
		[]string{"mode"},
	)

	TransitionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intakedb_transition_conflicts_total",
			Help: "Total number of transitions lost to a concurrent status change",
		},
		[]string{"action"},
	)

	IdempotentReplays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intakedb_idempotent_replays_total",
			Help: "Total number of application creates answered from a prior submission token",
		},
	)
)
