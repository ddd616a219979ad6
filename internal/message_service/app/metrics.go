package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "control_outbound_dispatch_total",
			Help: "Outbound dispatch attempts by outcome.",
		},
		[]string{"outcome"},
	)

	dispatchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "control_outbound_dispatch_duration_seconds",
			Help:    "Duration of outbound dispatches, gateway call included.",
			Buckets: prometheus.DefBuckets,
		},
	)

	deliveryEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "control_delivery_events_total",
			Help: "Delivery events received from the gateway by type and result.",
		},
		[]string{"event_type", "result"},
	)

	dispatchJobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "control_dispatch_job_failures_total",
			Help: "Dispatch jobs that ended in an error, by error class.",
		},
		[]string{"class"},
	)
)

// Label values for deliveryEventsTotal.
const (
	eventResultAccepted  = "accepted"
	eventResultRejected  = "rejected"
	eventResultDuplicate = "duplicate"
)
