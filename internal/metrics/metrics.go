// Package metrics holds the Prometheus collectors of the dashboard.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dashboard recomputation metrics
	RecomputesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiptrack_recomputes_total",
			Help: "Total number of filter and grouping recomputations",
		},
		[]string{"trigger"},
	)

	RecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shiptrack_recompute_duration_seconds",
			Help:    "Time taken to filter, sort and group the snapshot",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	VisibleShipments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shiptrack_visible_shipments",
			Help: "Number of shipments passing the current criteria",
		},
	)

	ColoadGroups = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shiptrack_coload_groups",
			Help: "Number of co-load groups in the current view",
		},
	)

	// Data source metrics
	SourceCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shiptrack_source_call_duration_seconds",
			Help:    "Duration of data source calls including simulated latency",
			Buckets: []float64{0.001, 0.01, 0.1, 0.3, 0.5, 0.8, 1, 2, 5},
		},
		[]string{"operation", "status"},
	)

	// Inbox metrics
	InboxMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiptrack_inbox_mutations_total",
			Help: "Optimistic inbox mutations by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// Relay metrics
	RelayPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shiptrack_relay_published_total",
			Help: "Events published to the relay topic",
		},
	)

	RelayErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shiptrack_relay_errors_total",
			Help: "Failed relay publish attempts",
		},
	)
)

// RecordRecompute records one recomputation and the resulting view size.
func RecordRecompute(trigger string, duration time.Duration, visible, groups int) {
	RecomputesTotal.WithLabelValues(trigger).Inc()
	RecomputeDuration.Observe(duration.Seconds())
	VisibleShipments.Set(float64(visible))
	ColoadGroups.Set(float64(groups))
}

// RecordSourceCall records a data source call.
func RecordSourceCall(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SourceCallDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// RecordInboxMutation records the outcome of an optimistic mutation.
func RecordInboxMutation(kind, outcome string) {
	InboxMutationsTotal.WithLabelValues(kind, outcome).Inc()
}
