package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	subscriptionDomain "github.com/mamang/control_services/internal/subscription_service/domain"
)

// --- Mocks ---

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) SendText(ctx context.Context, toAddr, content string) (string, error) {
	args := m.Called(ctx, toAddr, content)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) SendVoice(ctx context.Context, toAddr, content, speechURL string) (string, error) {
	args := m.Called(ctx, toAddr, content, speechURL)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) FireMetric(ctx context.Context, name string, value float64, agg string) error {
	args := m.Called(ctx, name, value, agg)
	return args.Error(0)
}

type MockTaskQueue struct {
	mock.Mock
}

func (m *MockTaskQueue) EnqueueDispatch(ctx context.Context, messageID uuid.UUID) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MockTaskQueue) EnqueueScheduleAck(ctx context.Context, subscriptionID uuid.UUID, schedulerMessageID string) error {
	args := m.Called(ctx, subscriptionID, schedulerMessageID)
	return args.Error(0)
}

func (m *MockTaskQueue) EnqueueMetric(ctx context.Context, name string, value float64, agg string) error {
	args := m.Called(ctx, name, value, agg)
	return args.Error(0)
}

type MockAddressBook struct {
	mock.Mock
}

func (m *MockAddressBook) Address(ctx context.Context, contactID uuid.UUID, addrType string) ([]string, error) {
	args := m.Called(ctx, contactID, addrType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockContentSource struct {
	mock.Mock
}

func (m *MockContentSource) ResolveForSubscription(ctx context.Context, subscriptionID uuid.UUID) (subscriptionDomain.MessageContent, error) {
	args := m.Called(ctx, subscriptionID)
	return args.Get(0).(subscriptionDomain.MessageContent), args.Error(1)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, messageID uuid.UUID) (DispatchOutcome, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(DispatchOutcome), args.Error(1)
}
