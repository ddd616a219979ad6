package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mamang/control_services/internal/contact_service/domain"
)

// Directory resolves contacts and their delivery addresses.
type Directory struct {
	repo   domain.ContactRepository
	logger *slog.Logger
}

func NewDirectory(repo domain.ContactRepository, logger *slog.Logger) *Directory {
	return &Directory{repo: repo, logger: logger.With("service", "contact_directory")}
}

// Address returns the contact's addresses of addrType (see Contact.Address).
// A missing contact is domain.ErrNotFound.
func (d *Directory) Address(ctx context.Context, contactID uuid.UUID, addrType string) ([]string, error) {
	ct, err := d.repo.GetByID(ctx, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contact %s: %w", contactID, err)
	}
	return ct.Address(addrType), nil
}

func (d *Directory) Get(ctx context.Context, contactID uuid.UUID) (*domain.Contact, error) {
	return d.repo.GetByID(ctx, contactID)
}

// Register stores a new contact built from its stored address form.
func (d *Directory) Register(ctx context.Context, addresses, defaultAddrType string, details map[string]string) (*domain.Contact, error) {
	ct := domain.NewContact(uuid.New(), addresses, defaultAddrType, details)
	if err := d.repo.Create(ctx, ct); err != nil {
		return nil, fmt.Errorf("failed to register contact: %w", err)
	}
	d.logger.InfoContext(ctx, "Contact registered", "contact_id", ct.ID, "address_count", len(ct.Addresses))
	return ct, nil
}
