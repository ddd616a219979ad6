package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mamang/control_services/internal/message_service/domain"
	"github.com/mamang/control_services/internal/platform/database"
)

const uniqueViolation = "23505"

const outboundColumns = `id, contact_id, version, content, gateway_message_id, delivered, attempts, metadata, created_at, updated_at`

type PgOutboundRepository struct {
	db     database.DB
	logger *slog.Logger
}

func NewPgOutboundRepository(db database.DB, logger *slog.Logger) *PgOutboundRepository {
	return &PgOutboundRepository{db: db, logger: logger}
}

func (r *PgOutboundRepository) Create(ctx context.Context, m *domain.OutboundMessage) error {
	query := `
		INSERT INTO outbound_messages (id, contact_id, version, content, gateway_message_id, delivered, attempts, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	metadataJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal outbound metadata: %w", err)
	}
	_, err = r.db.Exec(ctx, query,
		m.ID, m.ContactID, m.Version, m.Content, m.GatewayMessageID,
		m.Delivered, m.Attempts, metadataJSON, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating outbound message", "error", err, "message_id", m.ID)
		return fmt.Errorf("failed to create outbound message: %w", err)
	}
	return nil
}

func (r *PgOutboundRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.OutboundMessage, error) {
	query := `SELECT ` + outboundColumns + ` FROM outbound_messages WHERE id = $1`
	m, err := scanOutbound(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting outbound message", "error", err, "message_id", id)
		return nil, fmt.Errorf("failed to get outbound message: %w", err)
	}
	return m, nil
}

func (r *PgOutboundRepository) Update(ctx context.Context, id uuid.UUID, fn domain.UpdateFunc) (*domain.OutboundMessage, error) {
	query := `SELECT ` + outboundColumns + ` FROM outbound_messages WHERE id = $1 FOR UPDATE`
	return r.updateLocked(ctx, query, id, fn)
}

func (r *PgOutboundRepository) UpdateByGatewayID(ctx context.Context, gatewayMessageID string, fn domain.UpdateFunc) (*domain.OutboundMessage, error) {
	query := `SELECT ` + outboundColumns + ` FROM outbound_messages WHERE gateway_message_id = $1 FOR UPDATE`
	return r.updateLocked(ctx, query, gatewayMessageID, fn)
}

// updateLocked loads one row with FOR UPDATE, applies fn and writes the result
// back in the same transaction.
func (r *PgOutboundRepository) updateLocked(ctx context.Context, selectQuery string, key any, fn domain.UpdateFunc) (*domain.OutboundMessage, error) {
	var result *domain.OutboundMessage
	var unchanged bool

	txErr := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		m, err := scanOutbound(tx.QueryRow(ctx, selectQuery, key))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("failed to lock outbound message: %w", err)
		}

		if err := fn(m); err != nil {
			if errors.Is(err, domain.ErrNoChange) {
				result, unchanged = m, true
			}
			return err
		}

		m.UpdatedAt = time.Now().UTC()
		metadataJSON, err := json.Marshal(m.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal outbound metadata: %w", err)
		}
		update := `
			UPDATE outbound_messages
			SET content = $1, gateway_message_id = $2, delivered = $3, attempts = $4, metadata = $5, updated_at = $6
			WHERE id = $7
		`
		if _, err := tx.Exec(ctx, update,
			m.Content, m.GatewayMessageID, m.Delivered, m.Attempts, metadataJSON, m.UpdatedAt, m.ID,
		); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return domain.ErrDuplicateGatewayID
			}
			return fmt.Errorf("failed to update outbound message: %w", err)
		}
		result = m
		return nil
	})
	if unchanged {
		return result, nil
	}
	if txErr != nil {
		if !errors.Is(txErr, domain.ErrNotFound) {
			r.logger.ErrorContext(ctx, "Outbound update failed", "error", txErr, "key", key)
		}
		return nil, txErr
	}
	return result, nil
}

func scanOutbound(row pgx.Row) (*domain.OutboundMessage, error) {
	m := &domain.OutboundMessage{}
	var metadataJSON []byte
	if err := row.Scan(
		&m.ID, &m.ContactID, &m.Version, &m.Content, &m.GatewayMessageID,
		&m.Delivered, &m.Attempts, &metadataJSON, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &m.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal outbound metadata: %w", err)
		}
	}
	return m, nil
}
