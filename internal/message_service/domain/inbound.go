package domain

import (
	"time"

	"github.com/google/uuid"
)

// InboundMessage is a write-once record of a message received from a contact.
type InboundMessage struct {
	ID             uuid.UUID         `json:"id"`
	MessageID      string            `json:"message_id"`
	InReplyTo      *string           `json:"in_reply_to"`
	ToAddr         string            `json:"to_addr"`
	FromAddr       string            `json:"from_addr"`
	Content        *string           `json:"content"`
	TransportName  string            `json:"transport_name"`
	TransportType  string            `json:"transport_type"`
	HelperMetadata map[string]string `json:"helper_metadata"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
