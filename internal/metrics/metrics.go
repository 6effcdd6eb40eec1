package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpdatesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardpredictor_updates_total",
			Help: "Telegram updates received, by kind",
		},
		[]string{"kind"},
	)

	ParseRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardpredictor_parse_rejected_total",
			Help: "Result messages the parser rejected, by reason",
		},
		[]string{"reason"},
	)

	OutcomesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardpredictor_outcomes_dropped_total",
			Help: "Duplicate or out-of-order outcomes dropped before the engine",
		},
	)

	OutcomesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardpredictor_outcomes_processed_total",
			Help: "Outcomes applied by the channel actors",
		},
	)

	Signals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardpredictor_signals_total",
			Help: "Mirror rule signals, by gate decision",
		},
		[]string{"decision"},
	)

	PredictionsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardpredictor_predictions_resolved_total",
			Help: "Resolved predictions, by final status",
		},
		[]string{"status"},
	)

	OpenPredictions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardpredictor_open_predictions",
			Help: "Predictions waiting for verification",
		},
	)

	DeliveryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardpredictor_delivery_errors_total",
			Help: "Failed deliveries, by operation",
		},
		[]string{"op"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "cardpredictor_api_request_duration_seconds",
			Help: "Bot API request duration in seconds",
		},
		[]string{"status"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardpredictor_http_requests_total",
			Help: "Requests served by the HTTP server",
		},
		[]string{"method", "endpoint", "status"},
	)
)
