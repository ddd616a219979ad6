package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mamang/control_services/internal/contact_service/app"
	"github.com/mamang/control_services/internal/contact_service/domain"
	"github.com/mamang/control_services/internal/platform/httpserver"
)

// CreateContactRequest mirrors the stored contact details.
type CreateContactRequest struct {
	Addresses       string            `json:"addresses" validate:"required"`
	DefaultAddrType string            `json:"default_addr_type,omitempty"`
	Details         map[string]string `json:"details,omitempty"`
}

type ContactHandler struct {
	directory *app.Directory
	logger    *slog.Logger
	validate  *validator.Validate
}

func NewContactHandler(directory *app.Directory, logger *slog.Logger, validate *validator.Validate) *ContactHandler {
	return &ContactHandler{
		directory: directory,
		logger:    logger.With("handler", "contacts"),
		validate:  validate,
	}
}

// Routes mounts the contact endpoints on r.
func (h *ContactHandler) Routes(r chi.Router) {
	r.Post("/contacts/", h.CreateContact)
	r.Get("/contacts/{contactID}/", h.GetContact)
}

func (h *ContactHandler) CreateContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req CreateContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON format: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.StructCtx(ctx, req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	ct, err := h.directory.Register(ctx, req.Addresses, req.DefaultAddrType, req.Details)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to register contact", "error", err)
		http.Error(w, "Failed to create contact", http.StatusInternalServerError)
		return
	}
	httpserver.WriteJSON(w, logger, http.StatusCreated, ct)
}

func (h *ContactHandler) GetContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := uuid.Parse(chi.URLParam(r, "contactID"))
	if err != nil {
		http.Error(w, "Invalid contact ID", http.StatusBadRequest)
		return
	}

	ct, err := h.directory.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Contact not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "Failed to load contact", "error", err, "contact_id", id)
		http.Error(w, "Failed to load contact", http.StatusInternalServerError)
		return
	}
	httpserver.WriteJSON(w, h.logger, http.StatusOK, ct)
}
