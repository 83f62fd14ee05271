package escalation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "escalationgarden"

var (
	escalationsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escalation",
			Name:      "started_total",
			Help:      "Total escalations started",
		},
	)

	escalationsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escalation",
			Name:      "finished_total",
			Help:      "Total escalations moved to a terminal state, by status",
		},
		[]string{"status"},
	)

	actionsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escalation",
			Name:      "actions_total",
			Help:      "Total scheduled actions processed, by outcome",
		},
		[]string{"status"},
	)

	tickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "escalation",
			Name:      "tick_duration_seconds",
			Help:      "Time to process one escalation tick",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)

func recordEscalationStarted() {
	escalationsStarted.Inc()
}

func recordEscalationFinished(status string) {
	escalationsFinished.WithLabelValues(status).Inc()
}

func recordActionExecuted(status string) {
	actionsExecuted.WithLabelValues(status).Inc()
}

func recordTickDuration(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}
