package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mamang/control_services/internal/message_service/domain"
	"github.com/mamang/control_services/internal/platform/database"
)

type PgInboundRepository struct {
	db     database.DB
	logger *slog.Logger
}

func NewPgInboundRepository(db database.DB, logger *slog.Logger) *PgInboundRepository {
	return &PgInboundRepository{db: db, logger: logger}
}

func (r *PgInboundRepository) Create(ctx context.Context, m *domain.InboundMessage) error {
	query := `
		INSERT INTO inbound_messages (id, message_id, in_reply_to, to_addr, from_addr, content, transport_name, transport_type, helper_metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	helperJSON, err := json.Marshal(m.HelperMetadata)
	if err != nil {
		return fmt.Errorf("failed to marshal helper metadata: %w", err)
	}
	_, err = r.db.Exec(ctx, query,
		m.ID, m.MessageID, m.InReplyTo, m.ToAddr, m.FromAddr, m.Content,
		m.TransportName, m.TransportType, helperJSON, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating inbound message", "error", err, "inbound_id", m.ID)
		return fmt.Errorf("failed to create inbound message: %w", err)
	}
	return nil
}

func (r *PgInboundRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.InboundMessage, error) {
	query := `
		SELECT id, message_id, in_reply_to, to_addr, from_addr, content, transport_name, transport_type, helper_metadata, created_at, updated_at
		FROM inbound_messages
		WHERE id = $1
	`
	m := &domain.InboundMessage{}
	var helperJSON []byte
	err := r.db.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.MessageID, &m.InReplyTo, &m.ToAddr, &m.FromAddr, &m.Content,
		&m.TransportName, &m.TransportType, &helperJSON, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting inbound message", "error", err, "inbound_id", id)
		return nil, fmt.Errorf("failed to get inbound message: %w", err)
	}
	if len(helperJSON) > 0 {
		if err := json.Unmarshal(helperJSON, &m.HelperMetadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal helper metadata: %w", err)
		}
	}
	return m, nil
}
