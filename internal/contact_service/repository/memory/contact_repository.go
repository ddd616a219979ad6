// Package memory keeps contacts in process memory for local runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mamang/control_services/internal/contact_service/domain"
)

type ContactRepository struct {
	mu       sync.RWMutex
	contacts map[uuid.UUID]domain.Contact
}

func NewContactRepository() *ContactRepository {
	return &ContactRepository{contacts: make(map[uuid.UUID]domain.Contact)}
}

func (r *ContactRepository) Create(_ context.Context, ct *domain.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.contacts[ct.ID]; exists {
		return domain.ErrDuplicateEntry
	}
	r.contacts[ct.ID] = clone(ct)
	return nil
}

func (r *ContactRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ct, ok := r.contacts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := clone(&ct)
	return &out, nil
}

func clone(ct *domain.Contact) domain.Contact {
	out := *ct
	out.Addresses = append([]domain.Address(nil), ct.Addresses...)
	out.Details = make(map[string]string, len(ct.Details))
	for k, v := range ct.Details {
		out.Details[k] = v
	}
	return out
}
