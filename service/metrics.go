package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "branchchat_turns_total",
		Help: "Turns by outcome.",
	}, []string{"outcome"})

	modelLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "branchchat_model_latency_seconds",
		Help:    "Latency of model invocations.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 9),
	})

	tokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "branchchat_tokens_total",
		Help: "Tokens recorded on saved messages, by role.",
	}, []string{"role"})

	ambiguitiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "branchchat_tree_ambiguities_total",
		Help: "Structural ambiguities seen while building conversation trees.",
	}, []string{"kind"})

	purgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "branchchat_purged_messages_total",
		Help: "Soft-deleted messages removed by the purge task.",
	})
)

func turnOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	if te, ok := err.(*TurnError); ok {
		switch te.Kind {
		case ErrValidation:
			return "validation"
		case ErrTurnInFlight:
			return "in_flight"
		case ErrQuotaExceeded:
			return "quota"
		case ErrLedgerUnavailable:
			return "ledger"
		case ErrModelInvocation:
			return "model"
		case ErrPersistence:
			return "persistence"
		}
	}
	return "error"
}
