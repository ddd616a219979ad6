// Package memory keeps subscriptions in process memory for the memory store
// driver and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mamang/control_services/internal/subscription_service/domain"
)

// SubscriptionRepository serialises updates with one mutex.
type SubscriptionRepository struct {
	mu            sync.Mutex
	subscriptions map[uuid.UUID]*domain.Subscription
}

func NewSubscriptionRepository() *SubscriptionRepository {
	return &SubscriptionRepository{subscriptions: make(map[uuid.UUID]*domain.Subscription)}
}

func (r *SubscriptionRepository) Create(_ context.Context, s *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.subscriptions[s.ID]; exists {
		return fmt.Errorf("subscription %s already exists", s.ID)
	}
	r.subscriptions[s.ID] = clone(s)
	return nil
}

func (r *SubscriptionRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subscriptions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(s), nil
}

func (r *SubscriptionRepository) Update(_ context.Context, id uuid.UUID, fn domain.UpdateFunc) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.subscriptions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	working := clone(current)
	if err := fn(working); err != nil {
		if errors.Is(err, domain.ErrNoChange) {
			return clone(current), nil
		}
		return nil, err
	}
	working.UpdatedAt = time.Now().UTC()
	r.subscriptions[id] = working
	return clone(working), nil
}

func clone(s *domain.Subscription) *domain.Subscription {
	out := *s
	out.Metadata.Extra = maps.Clone(s.Metadata.Extra)
	return &out
}
