package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates that a requested message was not found.
	ErrNotFound = errors.New("message not found")
	// ErrUnexpectedEvent is returned by Apply for unknown event types.
	ErrUnexpectedEvent = errors.New("unexpected message type")
	// ErrInvalidTransition is returned when a mutation is not allowed in the
	// message's current state.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNoChange may be returned by an update function to leave the record
	// untouched. Repositories treat it as success.
	ErrNoChange = errors.New("no change")
	// ErrDuplicateGatewayID is returned when a write would give two messages
	// the same gateway message id.
	ErrDuplicateGatewayID = errors.New("gateway message id already assigned")
)

// UpdateFunc mutates a message loaded under a record lock.
type UpdateFunc func(m *OutboundMessage) error

// OutboundRepository stores Outbound messages. Update and UpdateByGatewayID
// hold a lock on the record while fn runs, so concurrent updates of the same
// message are serialised.
type OutboundRepository interface {
	Create(ctx context.Context, m *OutboundMessage) error
	GetByID(ctx context.Context, id uuid.UUID) (*OutboundMessage, error)
	Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (*OutboundMessage, error)
	UpdateByGatewayID(ctx context.Context, gatewayMessageID string, fn UpdateFunc) (*OutboundMessage, error)
}

// InboundRepository stores Inbound messages.
type InboundRepository interface {
	Create(ctx context.Context, m *InboundMessage) error
	GetByID(ctx context.Context, id uuid.UUID) (*InboundMessage, error)
}
