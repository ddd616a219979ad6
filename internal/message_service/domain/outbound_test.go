package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMaxRetries = 3

func newTestMessage(attempts int, delivered bool) *OutboundMessage {
	content := "hello"
	m := NewOutboundMessage(uuid.New(), uuid.New(), &content, OutboundMetadata{SubscriptionID: uuid.New()})
	m.Attempts = attempts
	m.Delivered = delivered
	return m
}

func TestOutboundMessage_Status(t *testing.T) {
	tests := []struct {
		name      string
		attempts  int
		delivered bool
		expected  Status
		action    Action
	}{
		{"Pending", 0, false, Status{Kind: StatusPending}, ActionSend},
		{"Sent", 2, false, Status{Kind: StatusSent, Attempts: 2}, ActionSend},
		{"Exhausted", 3, false, Status{Kind: StatusExhausted, Attempts: 3}, ActionExhausted},
		{"DeliveredWinsOverExhausted", 3, true, Status{Kind: StatusDelivered, Attempts: 3}, ActionSkipDelivered},
		{"Delivered", 1, true, Status{Kind: StatusDelivered, Attempts: 1}, ActionSkipDelivered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMessage(tt.attempts, tt.delivered)
			assert.Equal(t, tt.expected, m.Status(testMaxRetries))
			assert.Equal(t, tt.action, m.NextAction(testMaxRetries))
		})
	}
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "pending", Status{Kind: StatusPending}.String())
	assert.Equal(t, "sent(2)", Status{Kind: StatusSent, Attempts: 2}.String())
	assert.Equal(t, "exhausted(3)", Status{Kind: StatusExhausted, Attempts: 3}.String())
}

func TestNewOutboundMessage_StartsWithoutAttempts(t *testing.T) {
	m := NewOutboundMessage(uuid.New(), uuid.New(), nil, OutboundMetadata{})
	assert.Zero(t, m.Attempts)
	assert.False(t, m.Delivered)
	assert.Nil(t, m.GatewayMessageID)
	assert.False(t, m.HasPayload())
	assert.False(t, m.Metadata.HasSubscription())
}

func TestOutboundMessage_RecordSend(t *testing.T) {
	t.Run("IncrementsAttemptsAndStoresGatewayID", func(t *testing.T) {
		m := newTestMessage(1, false)
		require.NoError(t, m.RecordSend("gw-1", testMaxRetries))
		assert.Equal(t, 2, m.Attempts)
		require.NotNil(t, m.GatewayMessageID)
		assert.Equal(t, "gw-1", *m.GatewayMessageID)
	})

	t.Run("RejectedWhenExhausted", func(t *testing.T) {
		m := newTestMessage(testMaxRetries, false)
		err := m.RecordSend("gw-1", testMaxRetries)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, testMaxRetries, m.Attempts)
	})

	t.Run("RejectedWhenDelivered", func(t *testing.T) {
		m := newTestMessage(1, true)
		assert.ErrorIs(t, m.RecordSend("gw-1", testMaxRetries), ErrInvalidTransition)
	})
}

func TestOutboundMessage_Apply(t *testing.T) {
	t.Run("AckDeliversAndRequestsCleanup", func(t *testing.T) {
		m := newTestMessage(1, false)
		effect, err := m.Apply(DeliveryEvent{Type: EventAck, Timestamp: "2015-10-28 16:19:37.485612"}, testMaxRetries)
		require.NoError(t, err)
		assert.Equal(t, EffectScheduleCleanup, effect)
		assert.True(t, m.Delivered)
		assert.Equal(t, "2015-10-28 16:19:37.485612", m.Metadata.AckTimestamp)
	})

	t.Run("RepeatedAckOverwritesTimestamp", func(t *testing.T) {
		m := newTestMessage(1, false)
		_, err := m.Apply(DeliveryEvent{Type: EventAck, Timestamp: "t1"}, testMaxRetries)
		require.NoError(t, err)
		effect, err := m.Apply(DeliveryEvent{Type: EventAck, Timestamp: "t2"}, testMaxRetries)
		require.NoError(t, err)
		assert.Equal(t, EffectScheduleCleanup, effect)
		assert.Equal(t, "t2", m.Metadata.AckTimestamp)
	})

	t.Run("DeliveryReportDeliversWithoutCleanup", func(t *testing.T) {
		m := newTestMessage(1, false)
		effect, err := m.Apply(DeliveryEvent{Type: EventDeliveryReport, Timestamp: "t"}, testMaxRetries)
		require.NoError(t, err)
		assert.Equal(t, EffectNone, effect)
		assert.True(t, m.Delivered)
		assert.Equal(t, "t", m.Metadata.DeliveryTimestamp)
	})

	t.Run("NackRequestsRedispatch", func(t *testing.T) {
		m := newTestMessage(1, false)
		effect, err := m.Apply(DeliveryEvent{Type: EventNack, NackReason: "no route"}, testMaxRetries)
		require.NoError(t, err)
		assert.Equal(t, EffectRedispatch, effect)
		assert.False(t, m.Delivered)
		assert.Equal(t, 1, m.Attempts)
		assert.Equal(t, "no route", m.Metadata.NackReason)
	})

	t.Run("NackOnExhaustedStillRedispatches", func(t *testing.T) {
		m := newTestMessage(testMaxRetries, false)
		effect, err := m.Apply(DeliveryEvent{Type: EventNack, NackReason: "x"}, testMaxRetries)
		require.NoError(t, err)
		assert.Equal(t, EffectRedispatch, effect)
		assert.Equal(t, testMaxRetries, m.Attempts)
	})

	t.Run("NackAfterDeliveryKeepsDelivered", func(t *testing.T) {
		m := newTestMessage(1, true)
		effect, err := m.Apply(DeliveryEvent{Type: EventNack, NackReason: "late"}, testMaxRetries)
		require.NoError(t, err)
		assert.Equal(t, EffectNone, effect)
		assert.True(t, m.Delivered)
		assert.Equal(t, "late", m.Metadata.NackReason)
	})

	t.Run("UnknownTypeRejectedWithoutMutation", func(t *testing.T) {
		m := newTestMessage(1, false)
		before := *m
		effect, err := m.Apply(DeliveryEvent{Type: "bounce"}, testMaxRetries)
		assert.ErrorIs(t, err, ErrUnexpectedEvent)
		assert.Equal(t, EffectNone, effect)
		assert.Equal(t, before, *m)
	})
}
