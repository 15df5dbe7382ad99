package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transfer lifecycle outcomes, labelled by terminal decision.
var (
	TransfersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moneybee_transfers_created_total",
		Help: "Transfers persisted as pending.",
	})
	TransfersCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moneybee_transfers_completed_total",
		Help: "Transfers picked up by the receiver.",
	})
	TransfersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moneybee_transfers_cancelled_total",
		Help: "Transfers cancelled by a party or by a customer-event cascade.",
	})
	TransfersFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moneybee_transfers_failed_total",
		Help: "Creations rejected and recorded with high fraud risk.",
	})
	IdempotentReplays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moneybee_idempotent_replays_total",
		Help: "Create calls answered from a previously committed transfer.",
	})
	DailyLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moneybee_daily_limit_rejections_total",
		Help: "Creations refused by the per-sender daily limit.",
	})
	PublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moneybee_event_publish_failures_total",
		Help: "Post-commit event publishes that failed and were logged for republish.",
	})
	AuthRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moneybee_auth_rejections_total",
		Help: "Requests refused by the API-key admission filter.",
	})
	ReactorCascades = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moneybee_reactor_cascade_cancellations_total",
		Help: "Pending transfers cancelled by customer-event cascades.",
	})
)

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
