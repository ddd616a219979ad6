package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mamang/control_services/internal/platform/httpserver"
	"github.com/mamang/control_services/internal/subscription_service/app"
	"github.com/mamang/control_services/internal/subscription_service/domain"
)

const reasonInvalidSendCounter = "Invalid send-counter"

// SubscriptionService is what the handler needs from the lifecycle.
type SubscriptionService interface {
	CreateSubscription(ctx context.Context, req app.CreateSubscriptionRequest) (*domain.Subscription, error)
	TriggerSend(ctx context.Context, subscriptionID uuid.UUID, req app.TriggerSendRequest) (app.TriggerResult, error)
}

type SubscriptionHandler struct {
	service SubscriptionService
	logger  *slog.Logger
}

func NewSubscriptionHandler(service SubscriptionService, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{service: service, logger: logger.With("handler", "subscriptions")}
}

// Routes mounts the subscription endpoints on r.
func (h *SubscriptionHandler) Routes(r chi.Router) {
	r.Route("/subscriptions", func(r chi.Router) {
		r.Post("/", h.CreateSubscription)
		r.Post("/{subscriptionID}/send", h.TriggerSend)
	})
}

func (h *SubscriptionHandler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req app.CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON format: "+err.Error(), http.StatusBadRequest)
		return
	}

	sub, err := h.service.CreateSubscription(ctx, req)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
			return
		}
		logger.ErrorContext(ctx, "Failed to create subscription", "error", err)
		http.Error(w, "Failed to create subscription", http.StatusInternalServerError)
		return
	}
	httpserver.WriteJSON(w, logger, http.StatusCreated, sub)
}

// TriggerSend is called by the scheduler. It answers 201 when the send was
// accepted and 400 with a reason otherwise.
func (h *SubscriptionHandler) TriggerSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	id, err := uuid.Parse(chi.URLParam(r, "subscriptionID"))
	if err != nil {
		httpserver.WriteJSON(w, logger, http.StatusBadRequest, app.TriggerResult{Reason: app.ReasonMissingSubscription})
		return
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpserver.WriteJSON(w, logger, http.StatusBadRequest, app.TriggerResult{Reason: app.ReasonMissingKeys})
		return
	}
	req, ok := parseTriggerSend(body)
	if !ok {
		httpserver.WriteJSON(w, logger, http.StatusBadRequest, app.TriggerResult{Reason: reasonInvalidSendCounter})
		return
	}

	res, err := h.service.TriggerSend(ctx, id, req)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to trigger send", "error", err, "subscription_id", id)
		http.Error(w, "Failed to trigger send", http.StatusInternalServerError)
		return
	}
	status := http.StatusCreated
	if !res.Accepted {
		status = http.StatusBadRequest
	}
	httpserver.WriteJSON(w, logger, status, res)
}

// parseTriggerSend reads the scheduler body. Ids may arrive as strings or
// numbers; send-counter must be an integer or an integer string. ok is false
// only for a send-counter that is present but not an integer.
func parseTriggerSend(body map[string]json.RawMessage) (req app.TriggerSendRequest, ok bool) {
	if raw, found := body["message-id"]; found {
		v := flexString(raw)
		req.MessageID = &v
	}
	if raw, found := body["schedule-id"]; found {
		v := flexString(raw)
		req.ScheduleID = &v
	}
	if raw, found := body["send-counter"]; found {
		n, err := strconv.Atoi(flexString(raw))
		if err != nil {
			return req, false
		}
		req.SendCounter = &n
	}
	return req, true
}

func flexString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
