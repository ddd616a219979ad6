package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mamang/control_services/internal/contact_service/domain"
	"github.com/mamang/control_services/internal/platform/database"
)

// Keys in the details JSONB column that map onto typed Contact fields.
const (
	detailsAddressesKey   = "addresses"
	detailsDefaultTypeKey = "default_addr_type"
)

const uniqueViolation = "23505"

type PgContactRepository struct {
	db     database.DB
	logger *slog.Logger
}

func NewPgContactRepository(db database.DB, logger *slog.Logger) *PgContactRepository {
	return &PgContactRepository{db: db, logger: logger}
}

func (r *PgContactRepository) Create(ctx context.Context, ct *domain.Contact) error {
	query := `
		INSERT INTO contacts (id, version, details, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	detailsJSON, err := encodeDetails(ct)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query, ct.ID, ct.Version, detailsJSON, ct.CreatedAt, ct.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			r.logger.WarnContext(ctx, "Duplicate contact", "contact_id", ct.ID)
			return domain.ErrDuplicateEntry
		}
		r.logger.ErrorContext(ctx, "Error creating contact", "error", err, "contact_id", ct.ID)
		return fmt.Errorf("failed to create contact: %w", err)
	}
	r.logger.InfoContext(ctx, "Contact created successfully", "contact_id", ct.ID)
	return nil
}

func (r *PgContactRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contact, error) {
	query := `
		SELECT id, version, details, created_at, updated_at
		FROM contacts
		WHERE id = $1
	`
	ct := &domain.Contact{}
	var detailsJSON []byte
	err := r.db.QueryRow(ctx, query, id).Scan(&ct.ID, &ct.Version, &detailsJSON, &ct.CreatedAt, &ct.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting contact by ID", "error", err, "contact_id", id)
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	if err := decodeDetails(detailsJSON, ct); err != nil {
		r.logger.ErrorContext(ctx, "Error unmarshaling contact details", "error", err, "contact_id", id)
		return nil, err
	}
	return ct, nil
}

func encodeDetails(ct *domain.Contact) ([]byte, error) {
	details := make(map[string]string, len(ct.Details)+2)
	for k, v := range ct.Details {
		details[k] = v
	}
	details[detailsAddressesKey] = domain.FormatAddresses(ct.Addresses)
	if ct.DefaultAddrType != "" {
		details[detailsDefaultTypeKey] = ct.DefaultAddrType
	}
	b, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal contact details: %w", err)
	}
	return b, nil
}

func decodeDetails(b []byte, ct *domain.Contact) error {
	details := make(map[string]string)
	if len(b) > 0 {
		if err := json.Unmarshal(b, &details); err != nil {
			return fmt.Errorf("failed to unmarshal contact details: %w", err)
		}
	}
	ct.Addresses = domain.ParseAddresses(details[detailsAddressesKey])
	ct.DefaultAddrType = details[detailsDefaultTypeKey]
	delete(details, detailsAddressesKey)
	delete(details, detailsDefaultTypeKey)
	ct.Details = details
	return nil
}
