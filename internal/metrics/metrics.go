package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// Metrics exposes the counters the ledger, webhook and notification paths record.
type Metrics struct {
	Transactions      *prometheus.CounterVec
	TransactionErrors *prometheus.CounterVec
	WebhookEvents     *prometheus.CounterVec
	NotificationSends *prometheus.CounterVec
	SweepRuns         *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Transactions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perq",
			Name:      "ledger_transactions_total",
			Help:      "Committed ledger transactions by type.",
		}, []string{"type"}),
		TransactionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perq",
			Name:      "ledger_transaction_errors_total",
			Help:      "Rejected ledger transactions by reason.",
		}, []string{"reason"}),
		WebhookEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perq",
			Name:      "payment_webhook_events_total",
			Help:      "Payment processor webhook events by type and outcome.",
		}, []string{"event_type", "outcome"}),
		NotificationSends: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perq",
			Name:      "notification_sends_total",
			Help:      "Notification delivery attempts by channel and status.",
		}, []string{"channel", "status"}),
		SweepRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "perq",
			Name:      "sweep_runs_total",
			Help:      "Background sweep runs by job and outcome.",
		}, []string{"job", "outcome"}),
	}
}

var Module = fx.Module("metrics",
	fx.Provide(New),
)
