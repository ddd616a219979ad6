package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/mamang/control_services/internal/platform/transport"
	"github.com/mamang/control_services/internal/subscription_service/adapters/scheduler"
	"github.com/mamang/control_services/internal/subscription_service/domain"
)

// ErrInvalidCron is returned when a content store schedule does not render to
// a valid five-field cron definition.
var ErrInvalidCron = errors.New("invalid cron definition")

// ScheduleSource loads timing templates from the content store.
type ScheduleSource interface {
	GetSchedule(ctx context.Context, id int) (domain.CronSchedule, error)
}

// SchedulerAPI is the external scheduler.
type SchedulerAPI interface {
	CreateSchedule(ctx context.Context, req scheduler.CreateScheduleRequest) (string, error)
	DeleteMessage(ctx context.Context, messageID string) error
}

type cronValidator interface {
	IsValid(expr string) bool
}

// Registrar keeps the external scheduler in step with subscriptions.
type Registrar struct {
	subscriptions domain.SubscriptionRepository
	schedules     ScheduleSource
	scheduler     SchedulerAPI
	controlURL    string
	cron          cronValidator
	logger        *slog.Logger
}

// NewRegistrar creates a Registrar. controlURL is the public API root the
// scheduler calls back into.
func NewRegistrar(subscriptions domain.SubscriptionRepository, schedules ScheduleSource, scheduler SchedulerAPI, controlURL string, logger *slog.Logger) *Registrar {
	return &Registrar{
		subscriptions: subscriptions,
		schedules:     schedules,
		scheduler:     scheduler,
		controlURL:    strings.TrimRight(controlURL, "/"),
		cron:          gronx.New(),
		logger:        logger.With("service", "schedule_registrar"),
	}
}

// SendEndpoint is the callback the scheduler hits for each due message.
func (r *Registrar) SendEndpoint(subscriptionID uuid.UUID) string {
	return fmt.Sprintf("%s/subscriptions/%s/send", r.controlURL, subscriptionID)
}

// CreateSchedule registers the subscription with the scheduler and stores the
// returned schedule id. A subscription that already has one is left alone.
// A missing subscription or an exceeded deadline is logged and yields "".
func (r *Registrar) CreateSchedule(ctx context.Context, subscriptionID uuid.UUID) (string, error) {
	logger := r.logger.With("subscription_id", subscriptionID)
	logger.InfoContext(ctx, "Creating schedule")

	sub, err := r.subscriptions.Update(ctx, subscriptionID, func(s *domain.Subscription) error {
		if s.Metadata.SchedulerScheduleID != "" {
			logger.InfoContext(ctx, "Subscription already scheduled", "schedule_id", s.Metadata.SchedulerScheduleID)
			return domain.ErrNoChange
		}

		tmpl, err := r.schedules.GetSchedule(ctx, s.Schedule)
		if err != nil {
			return err
		}
		cronDef := tmpl.Cron()
		if !r.cron.IsValid(cronDef) {
			return fmt.Errorf("%w: schedule %d renders %q", ErrInvalidCron, s.Schedule, cronDef)
		}

		scheduleID, err := r.scheduler.CreateSchedule(ctx, scheduler.CreateScheduleRequest{
			SubscriptionID: s.ID,
			Frequency:      s.Metadata.Frequency,
			SendCounter:    s.NextSequenceNumber,
			CronDefinition: cronDef,
			Endpoint:       r.SendEndpoint(s.ID),
		})
		if err != nil {
			return err
		}
		s.Metadata.SchedulerScheduleID = scheduleID
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			scheduleOperationsTotal.WithLabelValues(opScheduleCreate, "not_found").Inc()
			logger.ErrorContext(ctx, "Missing Subscription")
			return "", nil
		case errors.Is(err, context.DeadlineExceeded):
			scheduleOperationsTotal.WithLabelValues(opScheduleCreate, "timeout").Inc()
			logger.ErrorContext(ctx, "Time limit exceeded creating schedule", "error", err)
			return "", nil
		}
		scheduleOperationsTotal.WithLabelValues(opScheduleCreate, "error").Inc()
		return "", fmt.Errorf("failed to create schedule for subscription %s: %w", subscriptionID, err)
	}

	scheduleOperationsTotal.WithLabelValues(opScheduleCreate, "ok").Inc()
	logger.InfoContext(ctx, "Schedule stored", "schedule_id", sub.Metadata.SchedulerScheduleID)
	return sub.Metadata.SchedulerScheduleID, nil
}

// DeletePending acknowledges a scheduler message of the subscription and
// clears it. When schedulerMessageID names a message other than the one the
// subscription tracks, only the named message is deleted on the scheduler and
// the tracked one is left alone. An empty schedulerMessageID acknowledges
// whatever is tracked. Running it twice is harmless.
func (r *Registrar) DeletePending(ctx context.Context, subscriptionID uuid.UUID, schedulerMessageID string) error {
	logger := r.logger.With("subscription_id", subscriptionID)

	var deleted string
	_, err := r.subscriptions.Update(ctx, subscriptionID, func(s *domain.Subscription) error {
		current := s.Metadata.SchedulerMessageID
		if current == "" {
			logger.InfoContext(ctx, "No pending scheduler message")
			return domain.ErrNoChange
		}
		if schedulerMessageID != "" && schedulerMessageID != current {
			logger.InfoContext(ctx, "Scheduler message is no longer tracked",
				"scheduler_message_id", schedulerMessageID, "tracked_scheduler_message_id", current)
			if err := r.scheduler.DeleteMessage(ctx, schedulerMessageID); err != nil && !isGone(err) {
				return err
			}
			deleted = schedulerMessageID
			return domain.ErrNoChange
		}
		if err := r.scheduler.DeleteMessage(ctx, current); err != nil && !isGone(err) {
			return err
		}
		s.Metadata.SchedulerMessageID = ""
		deleted = current
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			scheduleOperationsTotal.WithLabelValues(opScheduleAck, "not_found").Inc()
			logger.ErrorContext(ctx, "Missing Subscription")
			return nil
		case errors.Is(err, context.DeadlineExceeded):
			scheduleOperationsTotal.WithLabelValues(opScheduleAck, "timeout").Inc()
			logger.ErrorContext(ctx, "Time limit exceeded acknowledging scheduler message", "error", err)
			return nil
		}
		scheduleOperationsTotal.WithLabelValues(opScheduleAck, "error").Inc()
		return fmt.Errorf("failed to clear pending message of subscription %s: %w", subscriptionID, err)
	}

	scheduleOperationsTotal.WithLabelValues(opScheduleAck, "ok").Inc()
	if deleted != "" {
		logger.InfoContext(ctx, "Scheduler message acknowledged", "scheduler_message_id", deleted)
	}
	return nil
}

// isGone reports a 404 from the scheduler, meaning the message was already
// removed.
func isGone(err error) bool {
	var pe *transport.PermanentError
	return errors.As(err, &pe) && pe.StatusCode == http.StatusNotFound
}
