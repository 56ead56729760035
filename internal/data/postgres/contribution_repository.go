// Package postgres provides PostgreSQL implementations of the domain
// repositories. Contributions carry the terminal-state guard that makes
// settlement idempotent, so every state-changing query here is conditional
// on the row still being pending.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/crowdpay-contribution-ledger/internal/domain/contribution"
	"github.com/crowdpay-contribution-ledger/internal/domain/shared"
	"github.com/crowdpay-contribution-ledger/internal/platform/persistence"
)

const contributionColumns = `id, campaign_id, contributor_name, message, is_anonymous, amount, currency, status, reference, payment_request, preimage, created_at, expires_at, paid_at`

// ContributionRepository implements the contribution.Repository interface for PostgreSQL
type ContributionRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewContributionRepository creates a new PostgreSQL contribution repository
func NewContributionRepository(logger *slog.Logger, db *persistence.PostgresDB) contribution.Repository {
	return &ContributionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing the lock and the
// terminal transition to happen atomically with the ledger credit.
func (r *ContributionRepository) WithTx(tx pgx.Tx) contribution.Repository {
	return &ContributionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new contribution. The unique index on the provider
// reference turns a duplicate charge into ErrDuplicateReference.
func (r *ContributionRepository) Create(ctx context.Context, c *contribution.Contribution) error {
	query := `
		INSERT INTO contributions (id, campaign_id, contributor_name, message, is_anonymous, amount, currency, status, reference, payment_request, preimage, created_at, expires_at, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.querier.Exec(ctx, query,
		c.ID,
		c.CampaignID,
		c.ContributorName,
		c.Message,
		c.IsAnonymous,
		c.Amount,
		c.Currency,
		c.Status,
		c.Reference,
		c.PaymentRequest,
		c.Preimage,
		c.CreatedAt,
		c.ExpiresAt,
		c.PaidAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return contribution.ErrDuplicateReference{Reference: c.Reference}
		}
		r.logger.Error("Failed to create contribution", "id", c.ID.String(), "error", err)
		return fmt.Errorf("failed to create contribution: %w", err)
	}

	return nil
}

// GetByID retrieves a contribution by its ID
func (r *ContributionRepository) GetByID(ctx context.Context, id uuid.UUID) (*contribution.Contribution, error) {
	query := `
		SELECT ` + contributionColumns + `
		FROM contributions
		WHERE id = $1
	`

	c, err := r.scanRow(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, contribution.ErrNotFound{ID: id}
		}
		r.logger.Error("Failed to get contribution", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get contribution: %w", err)
	}

	return c, nil
}

// GetByReference retrieves a contribution by its provider reference
func (r *ContributionRepository) GetByReference(ctx context.Context, reference string) (*contribution.Contribution, error) {
	query := `
		SELECT ` + contributionColumns + `
		FROM contributions
		WHERE reference = $1
	`

	c, err := r.scanRow(r.querier.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, contribution.ErrNotFound{Reference: reference}
		}
		r.logger.Error("Failed to get contribution by reference", "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to get contribution by reference: %w", err)
	}

	return c, nil
}

// LockByID obtains a row-level lock on the contribution and returns its
// current state. Must be used within a transaction.
func (r *ContributionRepository) LockByID(ctx context.Context, id uuid.UUID) (*contribution.Contribution, error) {
	query := `
		SELECT ` + contributionColumns + `
		FROM contributions
		WHERE id = $1
		FOR UPDATE
	`

	c, err := r.scanRow(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, contribution.ErrNotFound{ID: id}
		}
		r.logger.Error("Failed to lock contribution", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock contribution: %w", err)
	}

	return c, nil
}

// LockByReference obtains a row-level lock keyed by provider reference. This
// is the per-contribution critical section that serializes poll, webhook and
// sweep writers for the same charge.
func (r *ContributionRepository) LockByReference(ctx context.Context, reference string) (*contribution.Contribution, error) {
	query := `
		SELECT ` + contributionColumns + `
		FROM contributions
		WHERE reference = $1
		FOR UPDATE
	`

	c, err := r.scanRow(r.querier.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, contribution.ErrNotFound{Reference: reference}
		}
		r.logger.Error("Failed to lock contribution by reference", "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to lock contribution by reference: %w", err)
	}

	return c, nil
}

// MarkTerminal performs the guarded pending -> terminal transition. The WHERE
// clause on status is the compare-and-swap that makes the first terminal
// writer win; a lost race surfaces as ErrAlreadyTerminal.
func (r *ContributionRepository) MarkTerminal(ctx context.Context, id uuid.UUID, status shared.ContributionStatus, paidAt *time.Time, preimage string) error {
	query := `
		UPDATE contributions
		SET status = $1, paid_at = $2, preimage = $3
		WHERE id = $4 AND status = 'pending'
	`

	result, err := r.querier.Exec(ctx, query, status, paidAt, preimage, id)
	if err != nil {
		r.logger.Error("Failed to mark contribution terminal", "id", id.String(), "status", status, "error", err)
		return fmt.Errorf("failed to mark contribution terminal: %w", err)
	}

	if result.RowsAffected() == 0 {
		return contribution.ErrAlreadyTerminal{ID: id}
	}

	return nil
}

// ListPending returns pending contributions whose invoice has not yet expired,
// oldest first. This is the polling set, re-derived from the store each cycle.
func (r *ContributionRepository) ListPending(ctx context.Context, now time.Time, limit int) ([]*contribution.Contribution, error) {
	query := `
		SELECT ` + contributionColumns + `
		FROM contributions
		WHERE status = 'pending' AND expires_at > $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.querier.Query(ctx, query, now, limit)
	if err != nil {
		r.logger.Error("Failed to list pending contributions", "error", err)
		return nil, fmt.Errorf("failed to list pending contributions: %w", err)
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// ListExpiredPending returns pending contributions past their invoice expiry
func (r *ContributionRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*contribution.Contribution, error) {
	query := `
		SELECT ` + contributionColumns + `
		FROM contributions
		WHERE status = 'pending' AND expires_at <= $1
		ORDER BY expires_at ASC
		LIMIT $2
	`

	rows, err := r.querier.Query(ctx, query, now, limit)
	if err != nil {
		r.logger.Error("Failed to list expired pending contributions", "error", err)
		return nil, fmt.Errorf("failed to list expired pending contributions: %w", err)
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// List returns contributions matching the filter, newest first
func (r *ContributionRepository) List(ctx context.Context, filter contribution.ListFilter, limit, offset int) ([]*contribution.Contribution, error) {
	query := `
		SELECT ` + contributionColumns + `
		FROM contributions
		WHERE ($1::uuid IS NULL OR campaign_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.querier.Query(ctx, query, filter.CampaignID, filter.Status, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list contributions", "error", err)
		return nil, fmt.Errorf("failed to list contributions: %w", err)
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// Count returns the number of contributions matching the filter
func (r *ContributionRepository) Count(ctx context.Context, filter contribution.ListFilter) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM contributions
		WHERE ($1::uuid IS NULL OR campaign_id = $1)
		  AND ($2::text IS NULL OR status = $2)
	`

	var count int64
	if err := r.querier.QueryRow(ctx, query, filter.CampaignID, filter.Status).Scan(&count); err != nil {
		r.logger.Error("Failed to count contributions", "error", err)
		return 0, fmt.Errorf("failed to count contributions: %w", err)
	}

	return count, nil
}

// SumPaidByCampaign totals paid contribution amounts for the ledger
// consistency check.
func (r *ContributionRepository) SumPaidByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM contributions
		WHERE campaign_id = $1 AND status = 'paid'
	`

	var sum int64
	if err := r.querier.QueryRow(ctx, query, campaignID).Scan(&sum); err != nil {
		r.logger.Error("Failed to sum paid contributions", "campaign_id", campaignID.String(), "error", err)
		return 0, fmt.Errorf("failed to sum paid contributions: %w", err)
	}

	return sum, nil
}

func (r *ContributionRepository) scanRow(row pgx.Row) (*contribution.Contribution, error) {
	var c contribution.Contribution
	err := row.Scan(
		&c.ID,
		&c.CampaignID,
		&c.ContributorName,
		&c.Message,
		&c.IsAnonymous,
		&c.Amount,
		&c.Currency,
		&c.Status,
		&c.Reference,
		&c.PaymentRequest,
		&c.Preimage,
		&c.CreatedAt,
		&c.ExpiresAt,
		&c.PaidAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ContributionRepository) scanRows(rows pgx.Rows) ([]*contribution.Contribution, error) {
	var result []*contribution.Contribution
	for rows.Next() {
		c, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contribution row: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read contribution rows: %w", err)
	}
	return result, nil
}
