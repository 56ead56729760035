package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/crowdpay-contribution-ledger/internal/domain/campaign"
	"github.com/crowdpay-contribution-ledger/internal/platform/persistence"
)

// CampaignRepository implements the campaign.Repository interface for PostgreSQL
type CampaignRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewCampaignRepository creates a new PostgreSQL campaign repository
func NewCampaignRepository(logger *slog.Logger, db *persistence.PostgresDB) campaign.Repository {
	return &CampaignRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so the ledger credit commits
// together with the contribution's terminal transition.
func (r *CampaignRepository) WithTx(tx pgx.Tx) campaign.Repository {
	return &CampaignRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// GetByID retrieves a campaign by its ID
func (r *CampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	query := `
		SELECT id, title, target_amount, current_amount, currency, status, created_at, updated_at
		FROM campaigns
		WHERE id = $1
	`

	var c campaign.Campaign
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Title,
		&c.TargetAmount,
		&c.CurrentAmount,
		&c.Currency,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, campaign.ErrNotFound{ID: id}
		}
		r.logger.Error("Failed to get campaign", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return &c, nil
}

// Credit atomically adds amount to the running total. The increment and the
// goal-reached transition happen in one statement, so concurrent settlements
// for the same campaign remain additive and the completed transition is
// monotone. The returned flag is true only for the credit that crossed the
// target.
func (r *CampaignRepository) Credit(ctx context.Context, id uuid.UUID, amount int64) (bool, error) {
	query := `
		UPDATE campaigns
		SET current_amount = current_amount + $1,
		    status = CASE
		        WHEN status = 'active' AND current_amount + $1 >= target_amount THEN 'completed'
		        ELSE status
		    END,
		    updated_at = NOW()
		WHERE id = $2
		RETURNING status = 'completed' AND current_amount >= target_amount AND current_amount - $1 < target_amount
	`

	var completed bool
	err := r.querier.QueryRow(ctx, query, amount, id).Scan(&completed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, campaign.ErrNotFound{ID: id}
		}
		r.logger.Error("Failed to credit campaign", "id", id.String(), "amount", amount, "error", err)
		return false, fmt.Errorf("failed to credit campaign: %w", err)
	}

	return completed, nil
}

// SetCurrentAmount overwrites the running total during an operator-triggered
// ledger repair.
func (r *CampaignRepository) SetCurrentAmount(ctx context.Context, id uuid.UUID, amount int64) error {
	query := `
		UPDATE campaigns
		SET current_amount = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, amount, id)
	if err != nil {
		r.logger.Error("Failed to set campaign amount", "id", id.String(), "amount", amount, "error", err)
		return fmt.Errorf("failed to set campaign amount: %w", err)
	}

	if result.RowsAffected() == 0 {
		return campaign.ErrNotFound{ID: id}
	}

	return nil
}
