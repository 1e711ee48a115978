// Package metric exposes Prometheus counters for the engine's turn loop:
// processed turns per flow, reconciliation outcomes and generation
// fallbacks.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reconciliation result label values.
const (
	ResultInserted = "inserted"
	ResultMerged   = "merged"
	ResultDeferred = "deferred"
)

// Set bundles the engine's counters. A nil *Set is valid and records nothing,
// so metrics stay optional.
type Set struct {
	turns           *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	fallbacks       prometheus.Counter
}

// NewSet registers the counters with the given registerer.
func NewSet(reg prometheus.Registerer) *Set {
	factory := promauto.With(reg)
	return &Set{
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_turns_total",
			Help: "Messages processed, by resolved flow.",
		}, []string{"flow"}),
		reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_reconciliations_total",
			Help: "Reconciliation attempts, by flow and result.",
		}, []string{"flow", "result"}),
		fallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "leadflow_generation_fallbacks_total",
			Help: "Replies served by the canned fallback after a generation failure.",
		}),
	}
}

// Turn counts one processed message.
func (s *Set) Turn(flow string) {
	if s == nil {
		return
	}
	s.turns.WithLabelValues(flow).Inc()
}

// Reconciliation counts one reconciliation attempt outcome.
func (s *Set) Reconciliation(flow, result string) {
	if s == nil {
		return
	}
	s.reconciliations.WithLabelValues(flow, result).Inc()
}

// GenerationFallback counts one canned-reply fallback.
func (s *Set) GenerationFallback() {
	if s == nil {
		return
	}
	s.fallbacks.Inc()
}
