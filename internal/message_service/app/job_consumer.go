package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/mamang/control_services/internal/message_service/domain"
	"github.com/mamang/control_services/internal/message_service/provider"
	"github.com/mamang/control_services/internal/platform/messagebroker"
	"github.com/mamang/control_services/internal/platform/retry"
	"github.com/mamang/control_services/internal/platform/tasks"
	"github.com/mamang/control_services/internal/platform/transport"
)

// MessageDispatcher is the part of Dispatcher the job consumer needs.
type MessageDispatcher interface {
	Dispatch(ctx context.Context, messageID uuid.UUID) (DispatchOutcome, error)
}

// JobConsumer runs dispatch and gateway metric jobs taken from the broker.
type JobConsumer struct {
	subscriber messagebroker.Subscriber
	dispatcher MessageDispatcher
	gateway    provider.Gateway
	policy     retry.Policy
	jobTimeout time.Duration
	logger     *slog.Logger
}

func NewJobConsumer(
	subscriber messagebroker.Subscriber,
	dispatcher MessageDispatcher,
	gateway provider.Gateway,
	policy retry.Policy,
	jobTimeout time.Duration,
	logger *slog.Logger,
) *JobConsumer {
	return &JobConsumer{
		subscriber: subscriber,
		dispatcher: dispatcher,
		gateway:    gateway,
		policy:     policy,
		jobTimeout: jobTimeout,
		logger:     logger.With("component", "message_job_consumer"),
	}
}

// Start subscribes to the dispatch and metric subjects and blocks until ctx
// is done or a subscription fails.
func (c *JobConsumer) Start(ctx context.Context, queueGroup string) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.logger.InfoContext(gCtx, "Starting dispatch job subscription", "subject", tasks.SubjectOutboundDispatch, "queue_group", queueGroup)
		return c.subscriber.SubscribeToSubjectWithQueue(gCtx, tasks.SubjectOutboundDispatch, queueGroup, c.HandleDispatchJob)
	})
	g.Go(func() error {
		c.logger.InfoContext(gCtx, "Starting metric job subscription", "subject", tasks.SubjectGatewayMetric, "queue_group", queueGroup)
		return c.subscriber.SubscribeToSubjectWithQueue(gCtx, tasks.SubjectGatewayMetric, queueGroup, c.HandleMetricJob)
	})
	return g.Wait()
}

// HandleDispatchJob dispatches one message, retrying transient gateway
// failures within the job time limit.
func (c *JobConsumer) HandleDispatchJob(msg *nats.Msg) {
	var task tasks.DispatchTask
	if err := json.Unmarshal(msg.Data, &task); err != nil {
		c.logger.Error("Failed to decode dispatch task", "error", err, "data", string(msg.Data))
		dispatchJobFailuresTotal.WithLabelValues("decode").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.jobTimeout)
	defer cancel()
	logger := c.logger.With("message_id", task.MessageID)

	err := retry.Do(ctx, c.policy, transport.IsTransient, func(ctx context.Context) error {
		_, err := c.dispatcher.Dispatch(ctx, task.MessageID)
		return err
	})
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		dispatchJobFailuresTotal.WithLabelValues("not_found").Inc()
		logger.Error("Dispatch job for missing Outbound message")
	case errors.Is(err, context.DeadlineExceeded):
		dispatchJobFailuresTotal.WithLabelValues("timeout").Inc()
		logger.Error("Dispatch job exceeded its time limit", "error", err, "limit", c.jobTimeout)
	case transport.IsTransient(err):
		dispatchJobFailuresTotal.WithLabelValues("transient").Inc()
		logger.Error("Dispatch retries exhausted", "error", err, "attempts", c.policy.Attempts)
	case transport.IsPermanent(err):
		dispatchJobFailuresTotal.WithLabelValues("permanent").Inc()
		logger.Error("Gateway rejected message", "error", err)
	default:
		dispatchJobFailuresTotal.WithLabelValues("other").Inc()
		logger.Error("Dispatch job failed", "error", err)
	}
}

// HandleMetricJob forwards one metric to the gateway. Metrics are summed on
// the gateway side, so failures are logged and not retried.
func (c *JobConsumer) HandleMetricJob(msg *nats.Msg) {
	var task tasks.MetricTask
	if err := json.Unmarshal(msg.Data, &task); err != nil {
		c.logger.Error("Failed to decode metric task", "error", err, "data", string(msg.Data))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.jobTimeout)
	defer cancel()

	if err := c.gateway.FireMetric(ctx, task.Name, task.Value, task.Agg); err != nil {
		c.logger.Warn("Failed to fire metric", "error", err, "metric", task.Name)
		return
	}
	c.logger.Debug("Fired metric", "metric", task.Name, "value", task.Value, "agg", task.Agg)
}
