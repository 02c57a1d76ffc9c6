// Package metrics holds the domain Prometheus collectors. HTTP metrics
// live with the middleware.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeApplied  = "applied"
	OutcomeNoop     = "noop"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
	// OutcomeRolledBack marks a transition undone because its event
	// could not be published.
	OutcomeRolledBack = "rolled_back"
)

var (
	// transitionsTotal counts lifecycle operations by action and outcome.
	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_transitions_total",
			Help: "Campaign lifecycle operations by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	eventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_events_published_total",
			Help: "Lifecycle events handed to the queue, by type and result",
		},
		[]string{"type", "result"},
	)

	disbursementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_disbursements_total",
			Help: "Release jobs processed by the worker, by result",
		},
		[]string{"result"},
	)
)

func Transition(action, outcome string) {
	transitionsTotal.WithLabelValues(action, outcome).Inc()
}

func EventPublished(eventType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	eventsPublishedTotal.WithLabelValues(eventType, result).Inc()
}

func Disbursement(result string) {
	disbursementsTotal.WithLabelValues(result).Inc()
}
