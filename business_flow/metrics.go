package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	assignmentsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callcenter_assignments_created_total",
			Help: "Call assignments created, by creation mode",
		},
		[]string{"mode"},
	)

	assignmentTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callcenter_assignment_transitions_total",
			Help: "Assignment status transitions, by target status",
		},
		[]string{"to"},
	)

	verificationCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callcenter_verification_calls_total",
			Help: "Finalized verification calls, by result",
		},
		[]string{"result"},
	)

	batchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callcenter_batch_failures_total",
			Help: "Items skipped by batch operations, by operation and error code",
		},
		[]string{"operation", "code"},
	)
)

// Creation modes used as metric labels
const (
	modeManual   = "manual"
	modeBatch    = "batch"
	modeAuto     = "auto"
	modePool     = "pool"
	modeReassign = "reassign"
)
