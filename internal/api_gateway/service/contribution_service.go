package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crowdpay-contribution-ledger/internal/domain/campaign"
	"github.com/crowdpay-contribution-ledger/internal/domain/contribution"
	"github.com/crowdpay-contribution-ledger/internal/domain/shared"
	"github.com/crowdpay-contribution-ledger/internal/provider"
	"github.com/crowdpay-contribution-ledger/internal/reconciler"
)

// ContributionServiceImpl implements the ContributionService interface
type ContributionServiceImpl struct {
	contributionRepo contribution.Repository
	campaignRepo     campaign.Repository
	paymentProvider  provider.Provider
	canceller        *reconciler.Reconciler
	invoiceExpiry    time.Duration
}

// NewContributionService creates a new contribution service
func NewContributionService(
	contributionRepo contribution.Repository,
	campaignRepo campaign.Repository,
	paymentProvider provider.Provider,
	canceller *reconciler.Reconciler,
	invoiceExpiry time.Duration,
) ContributionService {
	return &ContributionServiceImpl{
		contributionRepo: contributionRepo,
		campaignRepo:     campaignRepo,
		paymentProvider:  paymentProvider,
		canceller:        canceller,
		invoiceExpiry:    invoiceExpiry,
	}
}

// CreateContribution validates the campaign, creates a charge with the payment
// provider, and persists the pending contribution keyed by the provider's
// reference. The contribution is only visible once the charge exists, so
// every stored pending row has an invoice behind it.
func (s *ContributionServiceImpl) CreateContribution(ctx context.Context, params CreateContributionParams) (*contribution.Contribution, error) {
	amountSats, err := toSatoshis(params.Amount, params.Currency)
	if err != nil {
		return nil, err
	}
	if amountSats < contribution.MinAmountSats {
		return nil, contribution.ErrAmountBelowMinimum
	}

	camp, err := s.campaignRepo.GetByID(ctx, params.CampaignID)
	if err != nil {
		return nil, err
	}
	if !camp.AcceptingContributions() {
		return nil, campaign.ErrNotActive{ID: camp.ID, Status: camp.Status}
	}

	displayName := "Anonymous"
	if !params.IsAnonymous && params.ContributorName != nil && *params.ContributorName != "" {
		displayName = *params.ContributorName
	}
	memo := fmt.Sprintf("Contribution to %s from %s", camp.Title, displayName)

	charge, err := s.paymentProvider.CreateCharge(ctx, provider.CreateChargeRequest{
		Amount: amountSats,
		Memo:   memo,
		Expiry: s.invoiceExpiry,
	})
	if err != nil {
		return nil, err
	}

	contrib, err := contribution.New(
		camp.ID,
		amountSats,
		params.ContributorName,
		params.Message,
		params.IsAnonymous,
		charge.Reference,
		charge.PaymentInstruction,
		charge.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	if err := s.contributionRepo.Create(ctx, contrib); err != nil {
		return nil, err
	}
	return contrib, nil
}

// GetContributionByID retrieves a contribution by its ID
func (s *ContributionServiceImpl) GetContributionByID(ctx context.Context, id uuid.UUID) (*contribution.Contribution, error) {
	return s.contributionRepo.GetByID(ctx, id)
}

// ListContributions retrieves a paginated, filtered list of contributions
func (s *ContributionServiceImpl) ListContributions(ctx context.Context, filter contribution.ListFilter, page, perPage int) ([]*contribution.Contribution, int64, error) {
	offset := (page - 1) * perPage

	contributions, err := s.contributionRepo.List(ctx, filter, perPage, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.contributionRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return contributions, total, nil
}

// CancelContribution cancels a pending contribution through the reconciler so
// the transition is serialized against concurrent payment observations
func (s *ContributionServiceImpl) CancelContribution(ctx context.Context, id uuid.UUID) (*contribution.Contribution, error) {
	return s.canceller.Cancel(ctx, id)
}

// toSatoshis normalizes a request amount to whole satoshis. Satoshi amounts
// must already be whole numbers; bitcoin amounts are converted.
func toSatoshis(amount float64, currency string) (int64, error) {
	switch strings.ToUpper(currency) {
	case "", shared.CurrencySats:
		if amount != math.Trunc(amount) {
			return 0, contribution.ErrInvalidAmount
		}
		return int64(amount), nil
	case shared.CurrencyBTC:
		return int64(math.Round(amount * shared.SatsPerBTC)), nil
	default:
		return 0, contribution.ErrInvalidCurrency
	}
}
