package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mamang/control_services/internal/message_service/domain"
)

type InboundRepository struct {
	mu       sync.RWMutex
	messages map[uuid.UUID]domain.InboundMessage
}

func NewInboundRepository() *InboundRepository {
	return &InboundRepository{messages: make(map[uuid.UUID]domain.InboundMessage)}
}

func (r *InboundRepository) Create(_ context.Context, m *domain.InboundMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.messages[m.ID]; exists {
		return fmt.Errorf("inbound message %s already exists", m.ID)
	}
	r.messages[m.ID] = *m
	return nil
}

func (r *InboundRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.InboundMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &m, nil
}
