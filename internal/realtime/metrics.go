package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	publishedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_published_total",
			Help: "Events published on the realtime bus.",
		},
		[]string{"type"},
	)

	droppedEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_dropped_events_total",
			Help: "Events dropped because a subscriber buffer was full.",
		},
	)

	subscribersGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_subscribers",
			Help: "Current number of realtime subscribers.",
		},
	)
)

func init() {
	prometheus.MustRegister(publishedEvents, droppedEvents, subscribersGauge)
}
