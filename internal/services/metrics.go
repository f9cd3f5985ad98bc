package services

import "github.com/prometheus/client_golang/prometheus"

var (
	backgroundTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "background_tasks_total",
			Help: "Background tasks by name and outcome (ok, error, timeout, panic, dropped).",
		},
		[]string{"task", "outcome"},
	)

	webhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Provider webhook deliveries by outcome.",
		},
		[]string{"outcome"},
	)

	autoReplies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auto_replies_total",
			Help: "Automatic replies by outcome (sent, escalated, empty, error).",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(backgroundTasks, webhookDeliveries, autoReplies)
}
