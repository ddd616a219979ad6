package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/mamang/control_services/internal/message_service/app"
	"github.com/mamang/control_services/internal/message_service/domain"
	"github.com/mamang/control_services/internal/platform/httpserver"
)

// MessageCreator is the creation path used by the handler.
type MessageCreator interface {
	CreateOutbound(ctx context.Context, req app.CreateOutboundRequest) (*domain.OutboundMessage, error)
	CreateInbound(ctx context.Context, req app.CreateInboundRequest) (*domain.InboundMessage, error)
}

// EventHandler applies gateway delivery events.
type EventHandler interface {
	HandleEvent(ctx context.Context, payload app.EventPayload) (app.EventResult, error)
}

type MessageHandler struct {
	creator MessageCreator
	events  EventHandler
	logger  *slog.Logger
}

func NewMessageHandler(creator MessageCreator, events EventHandler, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{
		creator: creator,
		events:  events,
		logger:  logger.With("handler", "messages"),
	}
}

// Routes mounts the message endpoints on r.
func (h *MessageHandler) Routes(r chi.Router) {
	r.Route("/messages", func(r chi.Router) {
		r.Post("/outbound/", h.CreateOutbound)
		r.Post("/inbound/", h.CreateInbound)
		r.Post("/events/", h.HandleEvent)
	})
}

func (h *MessageHandler) CreateOutbound(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req app.CreateOutboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON format: "+err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := h.creator.CreateOutbound(ctx, req)
	if err != nil {
		if isValidationError(err) {
			http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
			return
		}
		logger.ErrorContext(ctx, "Failed to create outbound message", "error", err)
		http.Error(w, "Failed to create outbound message", http.StatusInternalServerError)
		return
	}
	httpserver.WriteJSON(w, logger, http.StatusCreated, msg)
}

func (h *MessageHandler) CreateInbound(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req app.CreateInboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON format: "+err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := h.creator.CreateInbound(ctx, req)
	if err != nil {
		if isValidationError(err) {
			http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
			return
		}
		logger.ErrorContext(ctx, "Failed to store inbound message", "error", err)
		http.Error(w, "Failed to store inbound message", http.StatusInternalServerError)
		return
	}
	httpserver.WriteJSON(w, logger, http.StatusCreated, msg)
}

// HandleEvent answers 200 for accepted events and 400 with a reason for
// rejected ones. A body that is not JSON counts as missing keys.
func (h *MessageHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var payload app.EventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpserver.WriteJSON(w, logger, http.StatusBadRequest, app.EventResult{Reason: app.ReasonMissingKeys})
		return
	}

	res, err := h.events.HandleEvent(ctx, payload)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to handle delivery event", "error", err, "event_id", payload.EventID)
		http.Error(w, "Failed to handle event", http.StatusInternalServerError)
		return
	}
	status := http.StatusOK
	if !res.Accepted {
		status = http.StatusBadRequest
	}
	httpserver.WriteJSON(w, logger, status, res)
}

func isValidationError(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs) || errors.Is(err, app.ErrNoPayload)
}
