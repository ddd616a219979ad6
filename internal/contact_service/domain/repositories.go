package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates that a requested contact was not found.
	ErrNotFound = errors.New("contact not found")
	// ErrDuplicateEntry indicates a contact with the same id already exists.
	ErrDuplicateEntry = errors.New("duplicate contact")
)

// ContactRepository defines the interface for managing Contact data.
type ContactRepository interface {
	Create(ctx context.Context, contact *Contact) error
	GetByID(ctx context.Context, id uuid.UUID) (*Contact, error)
}
