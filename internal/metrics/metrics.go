package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitecast_fetches_total",
			Help: "Total upstream fetches by source and outcome",
		},
		[]string{"source", "status"},
	)

	FetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kitecast_fetch_latency_seconds",
			Help:    "Upstream fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitecast_evaluations_total",
			Help: "Total advisory evaluations by result",
		},
		[]string{"result"},
	)

	SignalAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kitecast_signal_available",
			Help: "Whether a live signal was available in the latest evaluation (1) or absent (0)",
		},
		[]string{"signal"},
	)

	DayScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kitecast_day_score",
			Help: "Latest total score per day offset",
		},
		[]string{"offset"},
	)

	FeedbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kitecast_feedback_total",
			Help: "Total feedback submissions stored",
		},
	)
)
