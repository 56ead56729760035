package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/crowdpay-contribution-ledger/internal/domain/campaign"
	"github.com/crowdpay-contribution-ledger/internal/domain/contribution"
	"github.com/crowdpay-contribution-ledger/internal/reconciler"
)

// CreateContributionParams carries the validated inputs for a new contribution
type CreateContributionParams struct {
	CampaignID      uuid.UUID
	Amount          float64
	Currency        string
	ContributorName *string
	Message         *string
	IsAnonymous     bool
}

// ContributionService defines the interface for contribution operations
type ContributionService interface {
	// CreateContribution creates a charge with the payment provider and
	// persists the resulting pending contribution.
	// Returns campaign.ErrNotActive if the campaign is not accepting
	// contributions, and provider errors when charge creation fails.
	CreateContribution(ctx context.Context, params CreateContributionParams) (*contribution.Contribution, error)

	// GetContributionByID retrieves a contribution by its ID
	// Returns contribution.ErrNotFound if it doesn't exist
	GetContributionByID(ctx context.Context, id uuid.UUID) (*contribution.Contribution, error)

	// ListContributions retrieves a paginated, filtered list of contributions
	// Returns contributions, total count matching the filter, and any error
	ListContributions(ctx context.Context, filter contribution.ListFilter, page, perPage int) ([]*contribution.Contribution, int64, error)

	// CancelContribution cancels a pending contribution
	// Returns contribution.ErrAlreadyTerminal if it has already settled,
	// failed, or expired
	CancelContribution(ctx context.Context, id uuid.UUID) (*contribution.Contribution, error)
}

// CampaignService defines the interface for campaign read and reconciliation
// operations
type CampaignService interface {
	// GetCampaignByID retrieves a campaign with its funding progress
	// Returns campaign.ErrNotFound if it doesn't exist
	GetCampaignByID(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error)

	// ReconcileCampaign recomputes the campaign total from paid
	// contributions and, when repair is true, overwrites the stored total
	ReconcileCampaign(ctx context.Context, id uuid.UUID, repair bool) (*reconciler.LedgerReport, error)
}
