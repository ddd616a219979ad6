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

	"github.com/mamang/control_services/internal/platform/database"
	"github.com/mamang/control_services/internal/subscription_service/domain"
)

const subscriptionColumns = `id, contact_id, version, messageset_id, next_sequence_number, lang, active, completed, schedule, process_status, metadata, created_at, updated_at`

type PgSubscriptionRepository struct {
	db     database.DB
	logger *slog.Logger
}

func NewPgSubscriptionRepository(db database.DB, logger *slog.Logger) *PgSubscriptionRepository {
	return &PgSubscriptionRepository{db: db, logger: logger}
}

func (r *PgSubscriptionRepository) Create(ctx context.Context, s *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	metadataJSON, err := json.Marshal(s.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription metadata: %w", err)
	}
	_, err = r.db.Exec(ctx, query,
		s.ID, s.ContactID, s.Version, s.MessageSetID, s.NextSequenceNumber, s.Lang,
		s.Active, s.Completed, s.Schedule, s.ProcessStatus, metadataJSON, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating subscription", "error", err, "subscription_id", s.ID)
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (r *PgSubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	s, err := scanSubscription(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting subscription", "error", err, "subscription_id", id)
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return s, nil
}

// Update locks the row with FOR UPDATE while fn runs.
func (r *PgSubscriptionRepository) Update(ctx context.Context, id uuid.UUID, fn domain.UpdateFunc) (*domain.Subscription, error) {
	var result *domain.Subscription
	var unchanged bool

	txErr := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1 FOR UPDATE`
		s, err := scanSubscription(tx.QueryRow(ctx, query, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("failed to lock subscription: %w", err)
		}

		if err := fn(s); err != nil {
			if errors.Is(err, domain.ErrNoChange) {
				result, unchanged = s, true
			}
			return err
		}

		s.UpdatedAt = time.Now().UTC()
		metadataJSON, err := json.Marshal(s.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal subscription metadata: %w", err)
		}
		update := `
			UPDATE subscriptions
			SET next_sequence_number = $1, active = $2, completed = $3, process_status = $4, metadata = $5, updated_at = $6
			WHERE id = $7
		`
		if _, err := tx.Exec(ctx, update,
			s.NextSequenceNumber, s.Active, s.Completed, s.ProcessStatus, metadataJSON, s.UpdatedAt, s.ID,
		); err != nil {
			return fmt.Errorf("failed to update subscription: %w", err)
		}
		result = s
		return nil
	})
	if unchanged {
		return result, nil
	}
	if txErr != nil {
		if !errors.Is(txErr, domain.ErrNotFound) {
			r.logger.ErrorContext(ctx, "Subscription update failed", "error", txErr, "subscription_id", id)
		}
		return nil, txErr
	}
	return result, nil
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	s := &domain.Subscription{}
	var metadataJSON []byte
	if err := row.Scan(
		&s.ID, &s.ContactID, &s.Version, &s.MessageSetID, &s.NextSequenceNumber, &s.Lang,
		&s.Active, &s.Completed, &s.Schedule, &s.ProcessStatus, &metadataJSON, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &s.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal subscription metadata: %w", err)
		}
	}
	return s, nil
}
