package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	messageApp "github.com/mamang/control_services/internal/message_service/app"
	messageDomain "github.com/mamang/control_services/internal/message_service/domain"
	"github.com/mamang/control_services/internal/subscription_service/adapters/scheduler"
	"github.com/mamang/control_services/internal/subscription_service/domain"
)

// --- Mocks ---

type MockScheduleSource struct {
	mock.Mock
}

func (m *MockScheduleSource) GetSchedule(ctx context.Context, id int) (domain.CronSchedule, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.CronSchedule), args.Error(1)
}

type MockSchedulerAPI struct {
	mock.Mock
}

func (m *MockSchedulerAPI) CreateSchedule(ctx context.Context, req scheduler.CreateScheduleRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockSchedulerAPI) DeleteMessage(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

type MockMessageSource struct {
	mock.Mock
}

func (m *MockMessageSource) Resolve(ctx context.Context, messageSetID, sequenceNumber int, lang string) (domain.MessageContent, error) {
	args := m.Called(ctx, messageSetID, sequenceNumber, lang)
	return args.Get(0).(domain.MessageContent), args.Error(1)
}

type MockScheduleQueue struct {
	mock.Mock
}

func (m *MockScheduleQueue) EnqueueScheduleCreate(ctx context.Context, subscriptionID uuid.UUID) error {
	args := m.Called(ctx, subscriptionID)
	return args.Error(0)
}

type MockOutboundCreator struct {
	mock.Mock
}

func (m *MockOutboundCreator) CreateOutbound(ctx context.Context, req messageApp.CreateOutboundRequest) (*messageDomain.OutboundMessage, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messageDomain.OutboundMessage), args.Error(1)
}

type MockScheduleRegistrar struct {
	mock.Mock
}

func (m *MockScheduleRegistrar) CreateSchedule(ctx context.Context, subscriptionID uuid.UUID) (string, error) {
	args := m.Called(ctx, subscriptionID)
	return args.String(0), args.Error(1)
}

func (m *MockScheduleRegistrar) DeletePending(ctx context.Context, subscriptionID uuid.UUID, schedulerMessageID string) error {
	args := m.Called(ctx, subscriptionID, schedulerMessageID)
	return args.Error(0)
}
