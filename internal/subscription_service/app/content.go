package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mamang/control_services/internal/subscription_service/domain"
)

// MessageSource resolves one message-set position to its content.
type MessageSource interface {
	Resolve(ctx context.Context, messageSetID, sequenceNumber int, lang string) (domain.MessageContent, error)
}

// ContentResolver finds the content due next for a subscription.
type ContentResolver struct {
	subscriptions domain.SubscriptionRepository
	messages      MessageSource
	logger        *slog.Logger
}

func NewContentResolver(subscriptions domain.SubscriptionRepository, messages MessageSource, logger *slog.Logger) *ContentResolver {
	return &ContentResolver{
		subscriptions: subscriptions,
		messages:      messages,
		logger:        logger.With("service", "content_resolver"),
	}
}

// ResolveForSubscription returns the content at the subscription's next
// sequence number, or domain.ErrNoContent.
func (c *ContentResolver) ResolveForSubscription(ctx context.Context, subscriptionID uuid.UUID) (domain.MessageContent, error) {
	sub, err := c.subscriptions.GetByID(ctx, subscriptionID)
	if err != nil {
		return domain.MessageContent{}, fmt.Errorf("failed to load subscription %s: %w", subscriptionID, err)
	}
	content, err := c.messages.Resolve(ctx, sub.MessageSetID, sub.NextSequenceNumber, sub.Lang)
	if err != nil {
		return domain.MessageContent{}, err
	}
	c.logger.DebugContext(ctx, "Resolved content", "subscription_id", subscriptionID,
		"messageset", sub.MessageSetID, "sequence_number", sub.NextSequenceNumber, "voice", content.SpeechURL != "")
	return content, nil
}
