package payments

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// classificationsTotal counts deposit verifications by outcome
	classificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boostify_deposit_classifications_total",
			Help: "Total number of payment intent deposit classifications by result",
		},
		[]string{"result"},
	)

	// intentsCreatedTotal counts payment intents created by type and status
	intentsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boostify_payment_intents_created_total",
			Help: "Total number of payment intents created by type and status",
		},
		[]string{"type", "status"},
	)

	// webhookEventsTotal counts verified and rejected Stripe webhook deliveries
	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boostify_stripe_webhook_events_total",
			Help: "Total number of Stripe webhook events by event type and status",
		},
		[]string{"event_type", "status"},
	)
)
