// Package tasks defines the background task subjects and payloads exchanged
// between the control API and the workers, and a Queue that publishes them.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mamang/control_services/internal/platform/messagebroker"
)

// Task subjects.
const (
	SubjectOutboundDispatch = "control.outbound.dispatch"
	SubjectScheduleCreate   = "control.subscription.schedule.create"
	SubjectScheduleAck      = "control.subscription.schedule.ack"
	SubjectGatewayMetric    = "control.gateway.metric"
)

const defaultMetricAggregation = "sum"

// DispatchTask asks a worker to (re)send an Outbound message.
type DispatchTask struct {
	MessageID uuid.UUID `json:"message_id"`
}

// SubscriptionTask carries the subscription for schedule create and ack. Ack
// tasks also name the scheduler message being acknowledged.
type SubscriptionTask struct {
	SubscriptionID     uuid.UUID `json:"subscription_id"`
	SchedulerMessageID string    `json:"scheduler_message_id,omitempty"`
}

// MetricTask is forwarded to the delivery gateway's metrics endpoint.
type MetricTask struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Agg   string  `json:"agg"`
}

// Queue publishes tasks on a broker.
type Queue struct {
	publisher messagebroker.Publisher
}

func NewQueue(publisher messagebroker.Publisher) *Queue {
	return &Queue{publisher: publisher}
}

func (q *Queue) EnqueueDispatch(ctx context.Context, messageID uuid.UUID) error {
	return q.publish(ctx, SubjectOutboundDispatch, DispatchTask{MessageID: messageID})
}

func (q *Queue) EnqueueScheduleCreate(ctx context.Context, subscriptionID uuid.UUID) error {
	return q.publish(ctx, SubjectScheduleCreate, SubscriptionTask{SubscriptionID: subscriptionID})
}

func (q *Queue) EnqueueScheduleAck(ctx context.Context, subscriptionID uuid.UUID, schedulerMessageID string) error {
	return q.publish(ctx, SubjectScheduleAck, SubscriptionTask{SubscriptionID: subscriptionID, SchedulerMessageID: schedulerMessageID})
}

// EnqueueMetric publishes a gateway metric. An empty agg means "sum".
func (q *Queue) EnqueueMetric(ctx context.Context, name string, value float64, agg string) error {
	if agg == "" {
		agg = defaultMetricAggregation
	}
	return q.publish(ctx, SubjectGatewayMetric, MetricTask{Name: name, Value: value, Agg: agg})
}

func (q *Queue) publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s task: %w", subject, err)
	}
	if err := q.publisher.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to enqueue %s task: %w", subject, err)
	}
	return nil
}
