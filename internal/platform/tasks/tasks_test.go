package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

func TestQueue_EnqueueDispatch(t *testing.T) {
	pub := new(MockPublisher)
	q := NewQueue(pub)
	id := uuid.New()

	pub.On("Publish", mock.Anything, SubjectOutboundDispatch, mock.MatchedBy(func(data []byte) bool {
		var task DispatchTask
		return json.Unmarshal(data, &task) == nil && task.MessageID == id
	})).Return(nil).Once()

	require.NoError(t, q.EnqueueDispatch(context.Background(), id))
	pub.AssertExpectations(t)
}

func TestQueue_EnqueueSubscriptionTasks(t *testing.T) {
	id := uuid.New()
	matchesID := mock.MatchedBy(func(data []byte) bool {
		var task SubscriptionTask
		return json.Unmarshal(data, &task) == nil && task.SubscriptionID == id
	})

	t.Run("ScheduleCreate", func(t *testing.T) {
		pub := new(MockPublisher)
		pub.On("Publish", mock.Anything, SubjectScheduleCreate, matchesID).Return(nil).Once()
		require.NoError(t, NewQueue(pub).EnqueueScheduleCreate(context.Background(), id))
		pub.AssertExpectations(t)
	})

	t.Run("ScheduleCreateOmitsSchedulerMessageID", func(t *testing.T) {
		pub := new(MockPublisher)
		pub.On("Publish", mock.Anything, SubjectScheduleCreate, mock.MatchedBy(func(data []byte) bool {
			var raw map[string]any
			return json.Unmarshal(data, &raw) == nil && raw["scheduler_message_id"] == nil
		})).Return(nil).Once()
		require.NoError(t, NewQueue(pub).EnqueueScheduleCreate(context.Background(), id))
		pub.AssertExpectations(t)
	})

	t.Run("ScheduleAckCarriesSchedulerMessageID", func(t *testing.T) {
		pub := new(MockPublisher)
		pub.On("Publish", mock.Anything, SubjectScheduleAck, mock.MatchedBy(func(data []byte) bool {
			var task SubscriptionTask
			return json.Unmarshal(data, &task) == nil && task.SubscriptionID == id && task.SchedulerMessageID == "sm-7"
		})).Return(nil).Once()
		require.NoError(t, NewQueue(pub).EnqueueScheduleAck(context.Background(), id, "sm-7"))
		pub.AssertExpectations(t)
	})
}

func TestQueue_EnqueueMetric_DefaultsToSum(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, SubjectGatewayMetric, mock.MatchedBy(func(data []byte) bool {
		var task MetricTask
		return json.Unmarshal(data, &task) == nil &&
			task.Name == "vumimessage.tries" && task.Value == 1 && task.Agg == "sum"
	})).Return(nil).Once()

	require.NoError(t, NewQueue(pub).EnqueueMetric(context.Background(), "vumimessage.tries", 1, ""))
	pub.AssertExpectations(t)
}

func TestQueue_PublishError(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, SubjectOutboundDispatch, mock.Anything).Return(errors.New("nats down"))

	err := NewQueue(pub).EnqueueDispatch(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats down")
}
