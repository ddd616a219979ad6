package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scheduleOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "control_schedule_operations_total",
			Help: "Scheduler create and cleanup operations by result.",
		},
		[]string{"operation", "result"},
	)

	sendTriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "control_subscription_send_triggers_total",
			Help: "Scheduler send callbacks by result.",
		},
		[]string{"result"},
	)
)

const (
	opScheduleCreate = "create"
	opScheduleAck    = "ack"
)
