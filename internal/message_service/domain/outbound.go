package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboundMetadata is the typed form of an Outbound message's metadata.
type OutboundMetadata struct {
	SubscriptionID      uuid.UUID         `json:"subscription"`
	SchedulerMessageID  string            `json:"scheduler_message_id,omitempty"`
	SchedulerScheduleID string            `json:"scheduler_schedule_id,omitempty"`
	VoiceSpeechURL      string            `json:"voice_speech_url,omitempty"`
	AckTimestamp        string            `json:"ack_timestamp,omitempty"`
	DeliveryTimestamp   string            `json:"delivery_timestamp,omitempty"`
	NackReason          string            `json:"nack_reason,omitempty"`
	Extra               map[string]string `json:"extra,omitempty"`
}

// HasSubscription reports whether the message belongs to a subscription.
func (m OutboundMetadata) HasSubscription() bool {
	return m.SubscriptionID != uuid.Nil
}

// OutboundMessage is a message sent, or to be sent, to a contact through the
// delivery gateway.
type OutboundMessage struct {
	ID               uuid.UUID        `json:"id"`
	ContactID        uuid.UUID        `json:"contact"`
	Version          int              `json:"version"`
	Content          *string          `json:"content"`
	GatewayMessageID *string          `json:"vumi_message_id"`
	Delivered        bool             `json:"delivered"`
	Attempts         int              `json:"attempts"`
	Metadata         OutboundMetadata `json:"metadata"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// NewOutboundMessage creates an unsent message. Attempts start at zero and
// only grow after the gateway confirms a send.
func NewOutboundMessage(id, contactID uuid.UUID, content *string, metadata OutboundMetadata) *OutboundMessage {
	now := time.Now().UTC()
	return &OutboundMessage{
		ID:        id,
		ContactID: contactID,
		Version:   1,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasPayload reports whether the message carries text or a voice URL.
func (m *OutboundMessage) HasPayload() bool {
	return (m.Content != nil && *m.Content != "") || m.Metadata.VoiceSpeechURL != ""
}

// IsVoice reports whether the message must go out as a voice call.
func (m *OutboundMessage) IsVoice() bool {
	return m.Metadata.VoiceSpeechURL != ""
}

// TextContent returns the text content, or "" when there is none.
func (m *OutboundMessage) TextContent() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// StatusKind names the state of an Outbound message.
type StatusKind string

const (
	StatusPending   StatusKind = "pending"
	StatusSent      StatusKind = "sent"
	StatusDelivered StatusKind = "delivered"
	StatusExhausted StatusKind = "exhausted"
)

// Status is the derived state of an Outbound message. Attempts is meaningful
// for sent and exhausted messages.
type Status struct {
	Kind     StatusKind `json:"kind"`
	Attempts int        `json:"attempts"`
}

func (s Status) String() string {
	switch s.Kind {
	case StatusSent, StatusExhausted:
		return fmt.Sprintf("%s(%d)", s.Kind, s.Attempts)
	default:
		return string(s.Kind)
	}
}

// Status derives the message state from its persisted fields.
func (m *OutboundMessage) Status(maxRetries int) Status {
	switch {
	case m.Delivered:
		return Status{Kind: StatusDelivered, Attempts: m.Attempts}
	case m.Attempts >= maxRetries:
		return Status{Kind: StatusExhausted, Attempts: m.Attempts}
	case m.Attempts == 0:
		return Status{Kind: StatusPending}
	default:
		return Status{Kind: StatusSent, Attempts: m.Attempts}
	}
}

// Action is what a dispatcher must do with a message.
type Action int

const (
	ActionSend Action = iota
	ActionExhausted
	ActionSkipDelivered
)

func (a Action) String() string {
	switch a {
	case ActionSend:
		return "send"
	case ActionExhausted:
		return "exhausted"
	case ActionSkipDelivered:
		return "skip_delivered"
	default:
		return "unknown"
	}
}

// NextAction decides the dispatcher branch for the message.
func (m *OutboundMessage) NextAction(maxRetries int) Action {
	switch m.Status(maxRetries).Kind {
	case StatusDelivered:
		return ActionSkipDelivered
	case StatusExhausted:
		return ActionExhausted
	default:
		return ActionSend
	}
}

// RecordSend registers a send confirmed by the gateway.
func (m *OutboundMessage) RecordSend(gatewayMessageID string, maxRetries int) error {
	if action := m.NextAction(maxRetries); action != ActionSend {
		return fmt.Errorf("%w: cannot record a send for a message in state %s", ErrInvalidTransition, m.Status(maxRetries))
	}
	m.Attempts++
	m.GatewayMessageID = &gatewayMessageID
	m.UpdatedAt = time.Now().UTC()
	return nil
}
