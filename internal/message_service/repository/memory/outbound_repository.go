// Package memory keeps messages in process memory for local runs and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mamang/control_services/internal/message_service/domain"
)

// OutboundRepository locks per record: an update of one message holds only
// that message's lock while fn runs, mirroring the row lock of the postgres
// implementation. mu guards the maps and is never held across fn.
type OutboundRepository struct {
	mu        sync.Mutex
	messages  map[uuid.UUID]*domain.OutboundMessage
	byGateway map[string]uuid.UUID
	locks     map[uuid.UUID]*sync.Mutex
}

func NewOutboundRepository() *OutboundRepository {
	return &OutboundRepository{
		messages:  make(map[uuid.UUID]*domain.OutboundMessage),
		byGateway: make(map[string]uuid.UUID),
		locks:     make(map[uuid.UUID]*sync.Mutex),
	}
}

func (r *OutboundRepository) Create(_ context.Context, m *domain.OutboundMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.messages[m.ID]; exists {
		return fmt.Errorf("outbound message %s already exists", m.ID)
	}
	if m.GatewayMessageID != nil {
		if _, taken := r.byGateway[*m.GatewayMessageID]; taken {
			return domain.ErrDuplicateGatewayID
		}
	}
	r.locks[m.ID] = &sync.Mutex{}
	r.store(cloneOutbound(m))
	return nil
}

func (r *OutboundRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.OutboundMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneOutbound(m), nil
}

func (r *OutboundRepository) Update(_ context.Context, id uuid.UUID, fn domain.UpdateFunc) (*domain.OutboundMessage, error) {
	return r.update(id, nil, fn)
}

func (r *OutboundRepository) UpdateByGatewayID(_ context.Context, gatewayMessageID string, fn domain.UpdateFunc) (*domain.OutboundMessage, error) {
	r.mu.Lock()
	id, ok := r.byGateway[gatewayMessageID]
	r.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	// A resend may have replaced the id while we waited for the lock.
	return r.update(id, func(m *domain.OutboundMessage) bool {
		return m.GatewayMessageID != nil && *m.GatewayMessageID == gatewayMessageID
	}, fn)
}

// List returns every stored message.
func (r *OutboundRepository) List() []*domain.OutboundMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.OutboundMessage, 0, len(r.messages))
	for _, m := range r.messages {
		out = append(out, cloneOutbound(m))
	}
	return out
}

func (r *OutboundRepository) update(id uuid.UUID, still func(*domain.OutboundMessage) bool, fn domain.UpdateFunc) (*domain.OutboundMessage, error) {
	r.mu.Lock()
	lock, ok := r.locks[id]
	r.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	current := r.messages[id]
	r.mu.Unlock()
	if still != nil && !still(current) {
		return nil, domain.ErrNotFound
	}

	working := cloneOutbound(current)
	if err := fn(working); err != nil {
		if errors.Is(err, domain.ErrNoChange) {
			return cloneOutbound(current), nil
		}
		return nil, err
	}
	working.UpdatedAt = time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	if working.GatewayMessageID != nil {
		if owner, taken := r.byGateway[*working.GatewayMessageID]; taken && owner != id {
			return nil, domain.ErrDuplicateGatewayID
		}
	}
	if current.GatewayMessageID != nil {
		delete(r.byGateway, *current.GatewayMessageID)
	}
	r.store(working)
	return cloneOutbound(working), nil
}

func (r *OutboundRepository) store(m *domain.OutboundMessage) {
	r.messages[m.ID] = m
	if m.GatewayMessageID != nil {
		r.byGateway[*m.GatewayMessageID] = m.ID
	}
}

func cloneOutbound(m *domain.OutboundMessage) *domain.OutboundMessage {
	out := *m
	if m.Content != nil {
		c := *m.Content
		out.Content = &c
	}
	if m.GatewayMessageID != nil {
		g := *m.GatewayMessageID
		out.GatewayMessageID = &g
	}
	if m.Metadata.Extra != nil {
		out.Metadata.Extra = make(map[string]string, len(m.Metadata.Extra))
		for k, v := range m.Metadata.Extra {
			out.Metadata.Extra[k] = v
		}
	}
	return &out
}
