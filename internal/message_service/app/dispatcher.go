package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	contactDomain "github.com/mamang/control_services/internal/contact_service/domain"
	"github.com/mamang/control_services/internal/message_service/domain"
	"github.com/mamang/control_services/internal/message_service/provider"
	subscriptionDomain "github.com/mamang/control_services/internal/subscription_service/domain"
)

// Gateway metric names.
const (
	MetricSendTries  = "vumimessage.tries"
	MetricMaxRetries = "vumimessage.maxretries"
	metricAggSum     = "sum"
)

// DeliveryAddrType is the address type messages are delivered to.
const DeliveryAddrType = "msisdn"

// AddressBook resolves contact addresses.
type AddressBook interface {
	Address(ctx context.Context, contactID uuid.UUID, addrType string) ([]string, error)
}

// ContentSource supplies content for messages created without any.
type ContentSource interface {
	ResolveForSubscription(ctx context.Context, subscriptionID uuid.UUID) (subscriptionDomain.MessageContent, error)
}

// TaskQueue enqueues background work.
type TaskQueue interface {
	EnqueueDispatch(ctx context.Context, messageID uuid.UUID) error
	EnqueueScheduleAck(ctx context.Context, subscriptionID uuid.UUID, schedulerMessageID string) error
	EnqueueMetric(ctx context.Context, name string, value float64, agg string) error
}

// DispatchOutcome describes what a dispatch did.
type DispatchOutcome string

const (
	OutcomeSent             DispatchOutcome = "sent"
	OutcomeExhausted        DispatchOutcome = "exhausted"
	OutcomeNoAddress        DispatchOutcome = "no_address"
	OutcomeNoContent        DispatchOutcome = "no_content"
	OutcomeAlreadyDelivered DispatchOutcome = "already_delivered"
)

// Dispatcher decides whether an Outbound message is (re)sent and sends it.
type Dispatcher struct {
	outbound   domain.OutboundRepository
	contacts   AddressBook
	content    ContentSource
	gateway    provider.Gateway
	tasks      TaskQueue
	maxRetries int
	logger     *slog.Logger
}

// NewDispatcher creates a Dispatcher. content may be nil, in which case
// messages without content are not hydrated.
func NewDispatcher(
	outbound domain.OutboundRepository,
	contacts AddressBook,
	content ContentSource,
	gateway provider.Gateway,
	tasks TaskQueue,
	maxRetries int,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		outbound:   outbound,
		contacts:   contacts,
		content:    content,
		gateway:    gateway,
		tasks:      tasks,
		maxRetries: maxRetries,
		logger:     logger.With("service", "outbound_dispatcher"),
	}
}

// Dispatch sends message messageID unless it is delivered or out of attempts.
// The gateway call runs while the message row is locked, and attempts and
// the gateway id are persisted only after the gateway accepted the message.
// Gateway failures are returned unchanged so the caller can retry
// transport.TransientError.
func (d *Dispatcher) Dispatch(ctx context.Context, messageID uuid.UUID) (DispatchOutcome, error) {
	start := time.Now()
	defer func() { dispatchDurationSeconds.Observe(time.Since(start).Seconds()) }()

	logger := d.logger.With("message_id", messageID)
	var (
		outcome DispatchOutcome
		toAddr  string
	)

	msg, err := d.outbound.Update(ctx, messageID, func(m *domain.OutboundMessage) error {
		switch m.NextAction(d.maxRetries) {
		case domain.ActionSkipDelivered:
			outcome = OutcomeAlreadyDelivered
			return domain.ErrNoChange
		case domain.ActionExhausted:
			outcome = OutcomeExhausted
			return domain.ErrNoChange
		}

		addr, err := d.resolveAddress(ctx, m.ContactID)
		if err != nil {
			return err
		}
		if addr == "" {
			outcome = OutcomeNoAddress
			return domain.ErrNoChange
		}
		toAddr = addr

		if !m.HasPayload() {
			found, err := d.hydrate(ctx, m)
			if err != nil {
				return err
			}
			if !found {
				outcome = OutcomeNoContent
				return domain.ErrNoChange
			}
		}

		var gatewayID string
		if m.IsVoice() {
			gatewayID, err = d.gateway.SendVoice(ctx, addr, m.Metadata.VoiceSpeechURL, m.Metadata.VoiceSpeechURL)
		} else {
			gatewayID, err = d.gateway.SendText(ctx, addr, m.TextContent())
		}
		if err != nil {
			return fmt.Errorf("gateway send failed: %w", err)
		}

		outcome = OutcomeSent
		return m.RecordSend(gatewayID, d.maxRetries)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.ErrorContext(ctx, "Missing Outbound message")
		}
		return "", err
	}
	dispatchOutcomesTotal.WithLabelValues(string(outcome)).Inc()

	switch outcome {
	case OutcomeSent:
		logger.InfoContext(ctx, "Sent message", "to_addr", toAddr, "attempts", msg.Attempts,
			"gateway_message_id", *msg.GatewayMessageID, "voice", msg.IsVoice())
		d.fireMetric(ctx, MetricSendTries)
	case OutcomeExhausted:
		logger.InfoContext(ctx, "Message at max retries", "attempts", msg.Attempts, "max_retries", d.maxRetries)
		d.fireMetric(ctx, MetricMaxRetries)
		d.cleanup(ctx, msg)
	case OutcomeNoAddress:
		logger.WarnContext(ctx, "Failed to send message, no address", "contact_id", msg.ContactID, "addr_type", DeliveryAddrType)
		d.cleanup(ctx, msg)
	case OutcomeNoContent:
		logger.WarnContext(ctx, "Failed to send message, no content", "subscription_id", msg.Metadata.SubscriptionID)
		d.cleanup(ctx, msg)
	case OutcomeAlreadyDelivered:
		logger.InfoContext(ctx, "Message already delivered, not sending")
	}
	return outcome, nil
}

func (d *Dispatcher) resolveAddress(ctx context.Context, contactID uuid.UUID) (string, error) {
	addrs, err := d.contacts.Address(ctx, contactID, DeliveryAddrType)
	if err != nil {
		if errors.Is(err, contactDomain.ErrNotFound) {
			d.logger.WarnContext(ctx, "Contact missing for message", "contact_id", contactID)
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve address: %w", err)
	}
	if len(addrs) == 0 {
		return "", nil
	}
	return addrs[0], nil
}

// hydrate fills in text and speech URL from the content store for messages
// created by a subscription send trigger.
func (d *Dispatcher) hydrate(ctx context.Context, m *domain.OutboundMessage) (bool, error) {
	if d.content == nil || !m.Metadata.HasSubscription() {
		return false, nil
	}
	content, err := d.content.ResolveForSubscription(ctx, m.Metadata.SubscriptionID)
	if err != nil {
		if errors.Is(err, subscriptionDomain.ErrNoContent) || errors.Is(err, subscriptionDomain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to resolve content: %w", err)
	}
	if content.Text == "" && content.SpeechURL == "" {
		return false, nil
	}
	text := content.Text
	m.Content = &text
	m.Metadata.VoiceSpeechURL = content.SpeechURL
	return true, nil
}

// cleanup asks the scheduler side to drop the subscription's pending message.
func (d *Dispatcher) cleanup(ctx context.Context, m *domain.OutboundMessage) {
	if !m.Metadata.HasSubscription() {
		d.logger.WarnContext(ctx, "Message has no subscription, skipping schedule cleanup", "message_id", m.ID)
		return
	}
	if err := d.tasks.EnqueueScheduleAck(ctx, m.Metadata.SubscriptionID, m.Metadata.SchedulerMessageID); err != nil {
		d.logger.ErrorContext(ctx, "Failed to enqueue schedule cleanup", "error", err,
			"message_id", m.ID, "subscription_id", m.Metadata.SubscriptionID)
	}
}

// fireMetric never fails the dispatch.
func (d *Dispatcher) fireMetric(ctx context.Context, name string) {
	if err := d.tasks.EnqueueMetric(ctx, name, 1, metricAggSum); err != nil {
		d.logger.WarnContext(ctx, "Failed to enqueue metric", "error", err, "metric", name)
	}
}
