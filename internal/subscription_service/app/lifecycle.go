package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	messageApp "github.com/mamang/control_services/internal/message_service/app"
	messageDomain "github.com/mamang/control_services/internal/message_service/domain"
	"github.com/mamang/control_services/internal/subscription_service/domain"
)

// Rejection reasons returned to the scheduler.
const (
	ReasonMissingKeys         = "Missing expected body keys"
	ReasonMissingSubscription = "Missing subscription in control"
)

// ScheduleQueue enqueues schedule creation.
type ScheduleQueue interface {
	EnqueueScheduleCreate(ctx context.Context, subscriptionID uuid.UUID) error
}

// OutboundCreator creates Outbound messages.
type OutboundCreator interface {
	CreateOutbound(ctx context.Context, req messageApp.CreateOutboundRequest) (*messageDomain.OutboundMessage, error)
}

// CreateSubscriptionRequest describes a new subscription.
type CreateSubscriptionRequest struct {
	ContactID          uuid.UUID         `json:"contact" validate:"required"`
	MessageSetID       int               `json:"messageset_id" validate:"required,gt=0"`
	NextSequenceNumber int               `json:"next_sequence_number" validate:"omitempty,gt=0"`
	Lang               string            `json:"lang" validate:"required,max=6"`
	Schedule           int               `json:"schedule" validate:"omitempty,gt=0"`
	Frequency          string            `json:"frequency"`
	Source             string            `json:"source"`
	Extra              map[string]string `json:"extra"`
}

// TriggerSendRequest is a scheduler send callback. Nil fields were absent
// from the body.
type TriggerSendRequest struct {
	MessageID   *string
	SendCounter *int
	ScheduleID  *string
}

// TriggerResult is the answer to a send callback.
type TriggerResult struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// Lifecycle creates subscriptions and turns scheduler callbacks into Outbound
// messages.
type Lifecycle struct {
	subscriptions domain.SubscriptionRepository
	queue         ScheduleQueue
	outbound      OutboundCreator
	validate      *validator.Validate
	logger        *slog.Logger
}

func NewLifecycle(subscriptions domain.SubscriptionRepository, queue ScheduleQueue, outbound OutboundCreator, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		subscriptions: subscriptions,
		queue:         queue,
		outbound:      outbound,
		validate:      validator.New(),
		logger:        logger.With("service", "subscription_lifecycle"),
	}
}

// CreateSubscription persists a subscription and enqueues its schedule
// creation. Later updates never enqueue.
func (l *Lifecycle) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*domain.Subscription, error) {
	if err := l.validate.StructCtx(ctx, req); err != nil {
		return nil, fmt.Errorf("invalid subscription: %w", err)
	}
	schedule := req.Schedule
	if schedule == 0 {
		schedule = 1
	}
	sub := domain.NewSubscription(uuid.New(), req.ContactID, req.MessageSetID, req.Lang, schedule, domain.SubscriptionMetadata{
		Frequency: req.Frequency,
		Source:    req.Source,
		Extra:     req.Extra,
	})
	if req.NextSequenceNumber > 0 {
		sub.NextSequenceNumber = req.NextSequenceNumber
	}

	if err := l.subscriptions.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	l.logger.InfoContext(ctx, "Subscription created", "subscription_id", sub.ID, "contact_id", sub.ContactID, "messageset", sub.MessageSetID)

	if err := l.queue.EnqueueScheduleCreate(ctx, sub.ID); err != nil {
		l.logger.ErrorContext(ctx, "Failed to enqueue schedule creation", "error", err, "subscription_id", sub.ID)
		return sub, fmt.Errorf("subscription %s stored but schedule creation not queued: %w", sub.ID, err)
	}
	return sub, nil
}

// TriggerSend handles a scheduler callback: the subscription moves to the
// given send counter and one Outbound message is created for its contact.
// The error is reserved for storage failures.
func (l *Lifecycle) TriggerSend(ctx context.Context, subscriptionID uuid.UUID, req TriggerSendRequest) (TriggerResult, error) {
	if req.MessageID == nil || req.SendCounter == nil || req.ScheduleID == nil {
		sendTriggersTotal.WithLabelValues("missing_keys").Inc()
		return TriggerResult{Reason: ReasonMissingKeys}, nil
	}
	logger := l.logger.With("subscription_id", subscriptionID, "scheduler_message_id", *req.MessageID)

	sub, err := l.subscriptions.Update(ctx, subscriptionID, func(s *domain.Subscription) error {
		s.NextSequenceNumber = *req.SendCounter
		s.Metadata.SchedulerMessageID = *req.MessageID
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			sendTriggersTotal.WithLabelValues("missing_subscription").Inc()
			logger.WarnContext(ctx, "Send triggered for unknown subscription")
			return TriggerResult{Reason: ReasonMissingSubscription}, nil
		}
		return TriggerResult{}, fmt.Errorf("failed to update subscription %s: %w", subscriptionID, err)
	}

	msg, err := l.outbound.CreateOutbound(ctx, messageApp.CreateOutboundRequest{
		ContactID:           sub.ContactID,
		SubscriptionID:      sub.ID,
		SchedulerMessageID:  *req.MessageID,
		SchedulerScheduleID: *req.ScheduleID,
	})
	switch {
	case err != nil && msg == nil:
		return TriggerResult{}, fmt.Errorf("failed to create outbound for subscription %s: %w", subscriptionID, err)
	case err != nil:
		// Stored but not queued; the logged message id is enough to replay it.
		logger.ErrorContext(ctx, "Outbound created without dispatch", "error", err, "message_id", msg.ID)
	}

	sendTriggersTotal.WithLabelValues("accepted").Inc()
	logger.InfoContext(ctx, "Send triggered", "message_id", msg.ID, "send_counter", *req.SendCounter)
	return TriggerResult{Accepted: true}, nil
}
