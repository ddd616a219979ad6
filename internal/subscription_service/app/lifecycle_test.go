package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	messageApp "github.com/mamang/control_services/internal/message_service/app"
	messageDomain "github.com/mamang/control_services/internal/message_service/domain"
	"github.com/mamang/control_services/internal/subscription_service/domain"
	"github.com/mamang/control_services/internal/subscription_service/repository/memory"
)

type lifecycleTestComponents struct {
	lifecycle *Lifecycle
	repo      *memory.SubscriptionRepository
	queue     *MockScheduleQueue
	outbound  *MockOutboundCreator
}

func setupLifecycleTest(t *testing.T) lifecycleTestComponents {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := lifecycleTestComponents{
		repo:     memory.NewSubscriptionRepository(),
		queue:    new(MockScheduleQueue),
		outbound: new(MockOutboundCreator),
	}
	c.lifecycle = NewLifecycle(c.repo, c.queue, c.outbound, logger)
	return c
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestLifecycle_CreateSubscription(t *testing.T) {
	c := setupLifecycleTest(t)
	ctx := context.Background()
	c.queue.On("EnqueueScheduleCreate", mock.Anything, mock.AnythingOfType("uuid.UUID")).Return(nil).Once()

	sub, err := c.lifecycle.CreateSubscription(ctx, CreateSubscriptionRequest{
		ContactID:    uuid.New(),
		MessageSetID: 1,
		Lang:         "eng_ZA",
		Frequency:    "2",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sub.NextSequenceNumber)
	assert.Equal(t, 1, sub.Schedule)
	assert.True(t, sub.Active)

	stored, err := c.repo.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "2", stored.Metadata.Frequency)
	c.queue.AssertCalled(t, "EnqueueScheduleCreate", mock.Anything, sub.ID)
}

func TestLifecycle_CreateSubscription_Invalid(t *testing.T) {
	c := setupLifecycleTest(t)

	_, err := c.lifecycle.CreateSubscription(context.Background(), CreateSubscriptionRequest{ContactID: uuid.New(), Lang: "eng_ZA"})
	require.Error(t, err)
	c.queue.AssertNotCalled(t, "EnqueueScheduleCreate", mock.Anything, mock.Anything)
}

func TestLifecycle_TriggerSend(t *testing.T) {
	c := setupLifecycleTest(t)
	ctx := context.Background()
	sub := domain.NewSubscription(uuid.New(), uuid.New(), 1, "eng_ZA", 1, domain.SubscriptionMetadata{})
	require.NoError(t, c.repo.Create(ctx, sub))

	created := messageDomain.NewOutboundMessage(uuid.New(), sub.ContactID, nil, messageDomain.OutboundMetadata{SubscriptionID: sub.ID})
	c.outbound.On("CreateOutbound", mock.Anything, messageApp.CreateOutboundRequest{
		ContactID:           sub.ContactID,
		SubscriptionID:      sub.ID,
		SchedulerMessageID:  "1",
		SchedulerScheduleID: "1",
	}).Return(created, nil).Once()

	res, err := c.lifecycle.TriggerSend(ctx, sub.ID, TriggerSendRequest{
		MessageID:   strPtr("1"),
		SendCounter: intPtr(2),
		ScheduleID:  strPtr("1"),
	})
	require.NoError(t, err)
	assert.Equal(t, TriggerResult{Accepted: true}, res)

	stored, _ := c.repo.GetByID(ctx, sub.ID)
	assert.Equal(t, 2, stored.NextSequenceNumber)
	assert.Equal(t, "1", stored.Metadata.SchedulerMessageID)
	c.outbound.AssertExpectations(t)
}

func TestLifecycle_TriggerSend_Rejections(t *testing.T) {
	testCases := []struct {
		name   string
		known  bool
		req    TriggerSendRequest
		reason string
	}{
		{
			name:   "missing send-counter",
			known:  true,
			req:    TriggerSendRequest{MessageID: strPtr("1"), ScheduleID: strPtr("1")},
			reason: ReasonMissingKeys,
		},
		{
			name:   "missing keys on unknown subscription",
			req:    TriggerSendRequest{MessageID: strPtr("1")},
			reason: ReasonMissingKeys,
		},
		{
			name:   "unknown subscription",
			req:    TriggerSendRequest{MessageID: strPtr("1"), SendCounter: intPtr(1), ScheduleID: strPtr("1")},
			reason: ReasonMissingSubscription,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := setupLifecycleTest(t)
			ctx := context.Background()
			id := uuid.New()
			if tc.known {
				sub := domain.NewSubscription(id, uuid.New(), 1, "eng_ZA", 1, domain.SubscriptionMetadata{})
				require.NoError(t, c.repo.Create(ctx, sub))
			}

			res, err := c.lifecycle.TriggerSend(ctx, id, tc.req)
			require.NoError(t, err)
			assert.Equal(t, TriggerResult{Accepted: false, Reason: tc.reason}, res)
			c.outbound.AssertNotCalled(t, "CreateOutbound", mock.Anything, mock.Anything)

			if tc.known {
				stored, _ := c.repo.GetByID(ctx, id)
				assert.Equal(t, 1, stored.NextSequenceNumber)
			}
		})
	}
}

func TestLifecycle_TriggerSend_OutboundFailure(t *testing.T) {
	c := setupLifecycleTest(t)
	ctx := context.Background()
	sub := domain.NewSubscription(uuid.New(), uuid.New(), 1, "eng_ZA", 1, domain.SubscriptionMetadata{})
	require.NoError(t, c.repo.Create(ctx, sub))
	c.outbound.On("CreateOutbound", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	_, err := c.lifecycle.TriggerSend(ctx, sub.ID, TriggerSendRequest{
		MessageID: strPtr("1"), SendCounter: intPtr(3), ScheduleID: strPtr("1"),
	})
	assert.Error(t, err)
}
