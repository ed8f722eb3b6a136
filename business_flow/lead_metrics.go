package businessflow

import (
	"github.com/amirphl/leadflow/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transition outcomes
const (
	outcomeApplied   = "applied"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
	outcomeCancelled = "cancelled"
)

var leadTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "lead_transitions_total",
	Help: "Lead writes by status pair, role and outcome",
}, []string{"from", "to", "role", "outcome"})

func observeTransition(from, to models.LeadStatus, role models.Role, outcome string) {
	leadTransitionsTotal.WithLabelValues(from.String(), to.String(), role.String(), outcome).Inc()
}
