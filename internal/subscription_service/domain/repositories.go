package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates that a requested subscription was not found.
	ErrNotFound = errors.New("subscription not found")
	// ErrNoContent indicates the content store has no message for a
	// subscription's message set, sequence number and language.
	ErrNoContent = errors.New("no content for subscription")
	// ErrNoChange may be returned by an update function to leave the record
	// untouched. Repositories treat it as success.
	ErrNoChange = errors.New("no change")
)

// UpdateFunc mutates a subscription loaded under a record lock.
type UpdateFunc func(s *Subscription) error

// SubscriptionRepository stores subscriptions. Update holds a lock on the
// record while fn runs.
type SubscriptionRepository interface {
	Create(ctx context.Context, s *Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (*Subscription, error)
}
