package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mamang/control_services/internal/message_service/domain"
)

// ErrNoPayload is returned when an Outbound message has neither content, a
// voice URL nor a subscription to take content from.
var ErrNoPayload = errors.New("message needs content, a voice speech url or a subscription")

// CreateOutboundRequest describes a new Outbound message.
type CreateOutboundRequest struct {
	ContactID           uuid.UUID         `json:"contact" validate:"required"`
	Content             *string           `json:"content"`
	VoiceSpeechURL      string            `json:"voice_speech_url" validate:"omitempty,url"`
	SubscriptionID      uuid.UUID         `json:"subscription"`
	SchedulerMessageID  string            `json:"scheduler_message_id"`
	SchedulerScheduleID string            `json:"scheduler_schedule_id"`
	Extra               map[string]string `json:"extra"`
}

// CreateInboundRequest describes a message received from a contact.
type CreateInboundRequest struct {
	MessageID      string            `json:"message_id" validate:"required"`
	InReplyTo      *string           `json:"in_reply_to"`
	ToAddr         string            `json:"to_addr" validate:"required"`
	FromAddr       string            `json:"from_addr" validate:"required"`
	Content        *string           `json:"content"`
	TransportName  string            `json:"transport_name"`
	TransportType  string            `json:"transport_type"`
	HelperMetadata map[string]string `json:"helper_metadata"`
}

// OutboundService is the creation path for Outbound and Inbound messages.
type OutboundService struct {
	outbound domain.OutboundRepository
	inbound  domain.InboundRepository
	tasks    TaskQueue
	validate *validator.Validate
	logger   *slog.Logger
}

func NewOutboundService(outbound domain.OutboundRepository, inbound domain.InboundRepository, tasks TaskQueue, logger *slog.Logger) *OutboundService {
	return &OutboundService{
		outbound: outbound,
		inbound:  inbound,
		tasks:    tasks,
		validate: validator.New(),
		logger:   logger.With("service", "outbound_service"),
	}
}

// CreateOutbound persists a message and enqueues its first dispatch.
// Messages created for a subscription may omit content, the dispatcher
// fetches it from the content store.
func (s *OutboundService) CreateOutbound(ctx context.Context, req CreateOutboundRequest) (*domain.OutboundMessage, error) {
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return nil, fmt.Errorf("invalid outbound message: %w", err)
	}
	hasContent := req.Content != nil && *req.Content != ""
	if !hasContent && req.VoiceSpeechURL == "" && req.SubscriptionID == uuid.Nil {
		return nil, ErrNoPayload
	}

	msg := domain.NewOutboundMessage(uuid.New(), req.ContactID, req.Content, domain.OutboundMetadata{
		SubscriptionID:      req.SubscriptionID,
		SchedulerMessageID:  req.SchedulerMessageID,
		SchedulerScheduleID: req.SchedulerScheduleID,
		VoiceSpeechURL:      req.VoiceSpeechURL,
		Extra:               req.Extra,
	})
	if err := s.outbound.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to create outbound message: %w", err)
	}
	s.logger.InfoContext(ctx, "Outbound message created", "message_id", msg.ID, "contact_id", msg.ContactID)

	if err := s.tasks.EnqueueDispatch(ctx, msg.ID); err != nil {
		// The row exists, so the send can be replayed from the logged id.
		s.logger.ErrorContext(ctx, "Failed to enqueue dispatch", "error", err, "message_id", msg.ID)
		return msg, fmt.Errorf("message %s stored but not queued: %w", msg.ID, err)
	}
	return msg, nil
}

// CreateInbound stores an Inbound message.
func (s *OutboundService) CreateInbound(ctx context.Context, req CreateInboundRequest) (*domain.InboundMessage, error) {
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return nil, fmt.Errorf("invalid inbound message: %w", err)
	}
	now := time.Now().UTC()
	msg := &domain.InboundMessage{
		ID:             uuid.New(),
		MessageID:      req.MessageID,
		InReplyTo:      req.InReplyTo,
		ToAddr:         req.ToAddr,
		FromAddr:       req.FromAddr,
		Content:        req.Content,
		TransportName:  req.TransportName,
		TransportType:  req.TransportType,
		HelperMetadata: req.HelperMetadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.inbound.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to create inbound message: %w", err)
	}
	s.logger.InfoContext(ctx, "Inbound message stored", "id", msg.ID, "message_id", msg.MessageID, "from_addr", msg.FromAddr)
	return msg, nil
}
