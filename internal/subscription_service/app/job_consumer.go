package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/mamang/control_services/internal/platform/messagebroker"
	"github.com/mamang/control_services/internal/platform/retry"
	"github.com/mamang/control_services/internal/platform/tasks"
	"github.com/mamang/control_services/internal/platform/transport"
)

// ScheduleRegistrar is the part of Registrar run by jobs.
type ScheduleRegistrar interface {
	CreateSchedule(ctx context.Context, subscriptionID uuid.UUID) (string, error)
	DeletePending(ctx context.Context, subscriptionID uuid.UUID, schedulerMessageID string) error
}

// JobConsumer runs schedule create and ack jobs.
type JobConsumer struct {
	subscriber messagebroker.Subscriber
	registrar  ScheduleRegistrar
	policy     retry.Policy
	jobTimeout time.Duration
	logger     *slog.Logger
}

func NewJobConsumer(subscriber messagebroker.Subscriber, registrar ScheduleRegistrar, policy retry.Policy, jobTimeout time.Duration, logger *slog.Logger) *JobConsumer {
	return &JobConsumer{
		subscriber: subscriber,
		registrar:  registrar,
		policy:     policy,
		jobTimeout: jobTimeout,
		logger:     logger.With("component", "subscription_job_consumer"),
	}
}

// Start blocks until ctx is done or a subscription fails.
func (c *JobConsumer) Start(ctx context.Context, queueGroup string) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.logger.InfoContext(gCtx, "Starting schedule create subscription", "subject", tasks.SubjectScheduleCreate, "queue_group", queueGroup)
		return c.subscriber.SubscribeToSubjectWithQueue(gCtx, tasks.SubjectScheduleCreate, queueGroup, c.HandleScheduleCreateJob)
	})
	g.Go(func() error {
		c.logger.InfoContext(gCtx, "Starting schedule ack subscription", "subject", tasks.SubjectScheduleAck, "queue_group", queueGroup)
		return c.subscriber.SubscribeToSubjectWithQueue(gCtx, tasks.SubjectScheduleAck, queueGroup, c.HandleScheduleAckJob)
	})
	return g.Wait()
}

func (c *JobConsumer) HandleScheduleCreateJob(msg *nats.Msg) {
	c.run(msg, "schedule_create", func(ctx context.Context, task tasks.SubscriptionTask) error {
		_, err := c.registrar.CreateSchedule(ctx, task.SubscriptionID)
		return err
	})
}

func (c *JobConsumer) HandleScheduleAckJob(msg *nats.Msg) {
	c.run(msg, "schedule_ack", func(ctx context.Context, task tasks.SubscriptionTask) error {
		return c.registrar.DeletePending(ctx, task.SubscriptionID, task.SchedulerMessageID)
	})
}

// run decodes the task and retries op on transient failures within the job
// time limit.
func (c *JobConsumer) run(msg *nats.Msg, job string, op func(ctx context.Context, task tasks.SubscriptionTask) error) {
	var task tasks.SubscriptionTask
	if err := json.Unmarshal(msg.Data, &task); err != nil {
		c.logger.Error("Failed to decode subscription task", "error", err, "job", job, "data", string(msg.Data))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.jobTimeout)
	defer cancel()

	err := retry.Do(ctx, c.policy, transport.IsTransient, func(ctx context.Context) error {
		return op(ctx, task)
	})
	if err != nil {
		c.logger.Error("Subscription job failed", "error", err, "job", job,
			"subscription_id", task.SubscriptionID, "transient", transport.IsTransient(err))
	}
}
