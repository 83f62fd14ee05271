package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "escalationgarden"

var (
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "dispatch_total",
			Help:      "Total notification dispatch attempts by channel and outcome",
		},
		[]string{"channel", "status"},
	)

	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "dispatch_duration_seconds",
			Help:      "Time to deliver a notification to a channel",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"channel"},
	)
)

func recordDispatch(channel, status string) {
	dispatchTotal.WithLabelValues(channel, status).Inc()
}

func recordDispatchDuration(channel string, duration time.Duration) {
	dispatchDuration.WithLabelValues(channel).Observe(duration.Seconds())
}
