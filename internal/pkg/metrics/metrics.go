package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sage",
		Subsystem: "billing",
		Name:      "webhook_events_total",
		Help:      "Billing webhook deliveries by event kind and outcome.",
	}, []string{"kind", "outcome"})

	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sage",
		Subsystem: "billing",
		Name:      "webhook_duration_seconds",
		Help:      "Time spent handling a billing webhook delivery.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	FallbackLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sage",
		Subsystem: "billing",
		Name:      "fallback_lookups_total",
		Help:      "Customer-email fallback lookups by result.",
	}, []string{"result"})

	PromoRedemptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sage",
		Subsystem: "promo",
		Name:      "redemptions_total",
		Help:      "Promo redemption attempts by outcome.",
	}, []string{"outcome"})

	AdminGateDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sage",
		Subsystem: "admin",
		Name:      "gate_decisions_total",
		Help:      "Admin gate decisions by result.",
	}, []string{"result"})

	MirrorSyncFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sage",
		Subsystem: "identity",
		Name:      "mirror_sync_failures_total",
		Help:      "Failed tier mirror writes to the identity provider by source.",
	}, []string{"source"})

	GrantExpirationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sage",
		Subsystem: "promo",
		Name:      "grant_expirations_total",
		Help:      "Users demoted after their promo grant lapsed.",
	})
)
