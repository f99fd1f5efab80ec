// Package metrics exposes Prometheus counters for the voucher engine.
// Registration uses promauto against the default registry; the HTTP layer
// serves them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transitions counts lifecycle outcomes by action and result.
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voucher_engine",
		Name:      "lifecycle_transitions_total",
		Help:      "Voucher lifecycle transitions by action and outcome.",
	}, []string{"action", "outcome"})

	// PriceUpdates counts accepted station price changes.
	PriceUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "voucher_engine",
		Name:      "price_updates_total",
		Help:      "Accepted station price updates.",
	})

	// DiscountWrites counts discount registry mutations (including removals).
	DiscountWrites = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "voucher_engine",
		Name:      "discount_writes_total",
		Help:      "Discount registry mutations, including removals.",
	})
)

const (
	OutcomeOK     = "ok"
	OutcomeDenied = "denied"
	OutcomeError  = "error"
)

// ObserveTransition records one lifecycle outcome.
func ObserveTransition(action, outcome string) {
	Transitions.WithLabelValues(action, outcome).Inc()
}
