package domain

import (
	"fmt"
	"time"
)

// EventType is a delivery gateway callback type.
type EventType string

const (
	EventAck            EventType = "ack"
	EventDeliveryReport EventType = "delivery_report"
	EventNack           EventType = "nack"
)

// DeliveryEvent is a validated gateway callback about one Outbound message.
type DeliveryEvent struct {
	ID               string
	Type             EventType
	GatewayMessageID string
	Timestamp        string
	NackReason       string
}

// Effect is the follow-up work an applied event asks for.
type Effect int

const (
	EffectNone Effect = iota
	// EffectScheduleCleanup clears the pending scheduler message of the
	// message's subscription.
	EffectScheduleCleanup
	// EffectRedispatch hands the message back to the dispatcher, which
	// decides between another send and the exhausted branch.
	EffectRedispatch
)

func (e Effect) String() string {
	switch e {
	case EffectNone:
		return "none"
	case EffectScheduleCleanup:
		return "schedule_cleanup"
	case EffectRedispatch:
		return "redispatch"
	default:
		return "unknown"
	}
}

// Apply is the single transition function for delivery events. It mutates m
// and returns the follow-up effect. Delivered never reverts: a nack on a
// delivered message only records its reason.
func (m *OutboundMessage) Apply(ev DeliveryEvent, maxRetries int) (Effect, error) {
	var effect Effect
	switch ev.Type {
	case EventAck:
		m.Delivered = true
		m.Metadata.AckTimestamp = ev.Timestamp
		effect = EffectScheduleCleanup
	case EventDeliveryReport:
		m.Delivered = true
		m.Metadata.DeliveryTimestamp = ev.Timestamp
		effect = EffectNone
	case EventNack:
		m.Metadata.NackReason = ev.NackReason
		if m.Status(maxRetries).Kind == StatusDelivered {
			effect = EffectNone
		} else {
			effect = EffectRedispatch
		}
	default:
		return EffectNone, fmt.Errorf("%w: %q", ErrUnexpectedEvent, ev.Type)
	}
	m.UpdatedAt = time.Now().UTC()
	return effect, nil
}
