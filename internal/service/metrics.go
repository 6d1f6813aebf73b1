package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Checkout outcomes recorded in checkout_attempts_total.
const (
	OutcomeSuccess              = "success"
	OutcomeEmptyCart            = "empty_cart"
	OutcomeInvalidInput         = "invalid_input"
	OutcomeCartChanged          = "cart_changed"
	OutcomeStockConflict        = "stock_conflict"
	OutcomeCatalogInconsistency = "catalog_inconsistency"
	OutcomePersistenceFailure   = "persistence_failure"
	OutcomeInvalidDraft         = "invalid_draft"
	OutcomeError                = "error"
)

var (
	checkoutAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})

	checkoutDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Time from checkout submission to outcome.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	cartNotices = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_notices_total",
		Help: "Corrections the cart validator applied, by kind.",
	}, []string{"kind"})
)
