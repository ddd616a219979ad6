package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mamang/control_services/internal/message_service/domain"
	"github.com/mamang/control_services/internal/platform/idempotency"
	"github.com/mamang/control_services/internal/platform/retry"
)

// Rejection reasons returned to the gateway. The missing-keys text is shared
// with the subscription send trigger and keeps its capital.
const (
	ReasonMissingKeys     = "Missing expected body keys"
	ReasonUnexpectedType  = "unexpected message type"
	ReasonMessageNotFound = "message not found"
)

const eventMessageType = "event"

// defaultLookupRetry covers an event that overtakes the commit of its own send:
// the gateway id only becomes visible once the dispatch transaction commits.
var defaultLookupRetry = retry.Policy{Attempts: 4, BaseDelay: 50 * time.Millisecond, MaxDelay: 400 * time.Millisecond}

// EventPayload is the body of a gateway event callback.
type EventPayload struct {
	MessageType   string `json:"message_type" validate:"required"`
	EventType     string `json:"event_type" validate:"required"`
	UserMessageID string `json:"user_message_id" validate:"required"`
	EventID       string `json:"event_id" validate:"required"`
	Timestamp     string `json:"timestamp" validate:"required"`
	NackReason    string `json:"nack_reason,omitempty"`
}

// EventResult is the outcome reported back to the gateway.
type EventResult struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

func rejected(reason string) EventResult {
	return EventResult{Accepted: false, Reason: reason}
}

// EventProcessor applies gateway delivery events to Outbound messages.
type EventProcessor struct {
	outbound   domain.OutboundRepository
	tasks      TaskQueue
	seen       idempotency.Store
	validate    *validator.Validate
	maxRetries  int
	lookupRetry retry.Policy
	logger      *slog.Logger
}

func NewEventProcessor(outbound domain.OutboundRepository, tasks TaskQueue, seen idempotency.Store, maxRetries int, logger *slog.Logger) *EventProcessor {
	return &EventProcessor{
		outbound:   outbound,
		tasks:      tasks,
		seen:       seen,
		validate:    validator.New(),
		maxRetries:  maxRetries,
		lookupRetry: defaultLookupRetry,
		logger:      logger.With("service", "event_processor"),
	}
}

// WithLookupRetry replaces how often an unknown gateway id is looked up again
// before the event is rejected.
func (p *EventProcessor) WithLookupRetry(policy retry.Policy) *EventProcessor {
	p.lookupRetry = policy
	return p
}

// HandleEvent validates and applies one event. Rejections come back as a
// result with Accepted false; the error is reserved for storage failures.
func (p *EventProcessor) HandleEvent(ctx context.Context, payload EventPayload) (EventResult, error) {
	if err := p.validate.StructCtx(ctx, payload); err != nil {
		deliveryEventsTotal.WithLabelValues(payload.EventType, eventResultRejected).Inc()
		return rejected(ReasonMissingKeys), nil
	}
	ev := domain.DeliveryEvent{
		ID:               payload.EventID,
		Type:             domain.EventType(payload.EventType),
		GatewayMessageID: payload.UserMessageID,
		Timestamp:        payload.Timestamp,
		NackReason:       payload.NackReason,
	}
	if payload.MessageType != eventMessageType || !knownEventType(ev.Type) {
		deliveryEventsTotal.WithLabelValues(payload.EventType, eventResultRejected).Inc()
		return rejected(ReasonUnexpectedType), nil
	}

	logger := p.logger.With("event_id", ev.ID, "event_type", ev.Type, "gateway_message_id", ev.GatewayMessageID)

	claimed, err := p.seen.Claim(ctx, ev.ID)
	if err != nil {
		logger.WarnContext(ctx, "Event de-duplication unavailable, applying event", "error", err)
		claimed = true
	} else if !claimed {
		logger.InfoContext(ctx, "Duplicate event, already applied")
		deliveryEventsTotal.WithLabelValues(payload.EventType, eventResultDuplicate).Inc()
		return EventResult{Accepted: true}, nil
	}

	var effect domain.Effect
	var msg *domain.OutboundMessage
	lookups := 0
	err = retry.Do(ctx, p.lookupRetry, isNotFound, func(ctx context.Context) error {
		lookups++
		var updateErr error
		msg, updateErr = p.outbound.UpdateByGatewayID(ctx, ev.GatewayMessageID, func(m *domain.OutboundMessage) error {
			var applyErr error
			effect, applyErr = m.Apply(ev, p.maxRetries)
			return applyErr
		})
		return updateErr
	})
	if lookups > 1 && err == nil {
		logger.InfoContext(ctx, "Message became visible after re-lookup", "lookups", lookups)
	}
	if err != nil {
		p.release(ctx, logger, ev.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			deliveryEventsTotal.WithLabelValues(payload.EventType, eventResultRejected).Inc()
			return rejected(ReasonMessageNotFound), nil
		case errors.Is(err, domain.ErrUnexpectedEvent):
			deliveryEventsTotal.WithLabelValues(payload.EventType, eventResultRejected).Inc()
			return rejected(ReasonUnexpectedType), nil
		}
		return EventResult{}, fmt.Errorf("failed to apply %s event: %w", ev.Type, err)
	}
	deliveryEventsTotal.WithLabelValues(payload.EventType, eventResultAccepted).Inc()
	logger.InfoContext(ctx, "Applied delivery event", "message_id", msg.ID, "effect", effect.String(), "delivered", msg.Delivered)

	p.follow(ctx, logger, msg, effect)
	return EventResult{Accepted: true}, nil
}

// follow enqueues the work an applied event asked for. The event itself is
// committed by now, so failures are only logged.
func (p *EventProcessor) follow(ctx context.Context, logger *slog.Logger, msg *domain.OutboundMessage, effect domain.Effect) {
	switch effect {
	case domain.EffectScheduleCleanup:
		if !msg.Metadata.HasSubscription() {
			return
		}
		if err := p.tasks.EnqueueScheduleAck(ctx, msg.Metadata.SubscriptionID, msg.Metadata.SchedulerMessageID); err != nil {
			logger.ErrorContext(ctx, "Failed to enqueue schedule cleanup", "error", err,
				"message_id", msg.ID, "subscription_id", msg.Metadata.SubscriptionID)
		}
	case domain.EffectRedispatch:
		if err := p.tasks.EnqueueDispatch(ctx, msg.ID); err != nil {
			logger.ErrorContext(ctx, "Failed to enqueue redispatch", "error", err, "message_id", msg.ID)
		}
	}
}

func (p *EventProcessor) release(ctx context.Context, logger *slog.Logger, eventID string) {
	if err := p.seen.Release(ctx, eventID); err != nil {
		logger.WarnContext(ctx, "Failed to release event claim", "error", err)
	}
}

func knownEventType(t domain.EventType) bool {
	switch t {
	case domain.EventAck, domain.EventDeliveryReport, domain.EventNack:
		return true
	}
	return false
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
