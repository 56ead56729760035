package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/crowdpay-contribution-ledger/internal/domain/campaign"
	"github.com/crowdpay-contribution-ledger/internal/reconciler"
)

// CampaignServiceImpl implements the CampaignService interface
type CampaignServiceImpl struct {
	campaignRepo campaign.Repository
	reconciler   *reconciler.Reconciler
}

// NewCampaignService creates a new campaign service
func NewCampaignService(campaignRepo campaign.Repository, rec *reconciler.Reconciler) CampaignService {
	return &CampaignServiceImpl{
		campaignRepo: campaignRepo,
		reconciler:   rec,
	}
}

// GetCampaignByID retrieves a campaign by its ID
func (s *CampaignServiceImpl) GetCampaignByID(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	return s.campaignRepo.GetByID(ctx, id)
}

// ReconcileCampaign checks the campaign ledger against the sum of its paid
// contributions and optionally repairs the stored total
func (s *CampaignServiceImpl) ReconcileCampaign(ctx context.Context, id uuid.UUID, repair bool) (*reconciler.LedgerReport, error) {
	if repair {
		return s.reconciler.RepairLedger(ctx, id)
	}
	return s.reconciler.CheckLedger(ctx, id)
}
