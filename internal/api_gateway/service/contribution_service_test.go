package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/crowdpay-contribution-ledger/internal/domain/campaign"
	"github.com/crowdpay-contribution-ledger/internal/domain/contribution"
	"github.com/crowdpay-contribution-ledger/internal/domain/shared"
	"github.com/crowdpay-contribution-ledger/internal/provider"
)

type MockContributionRepository struct {
	mock.Mock
}

func (m *MockContributionRepository) Create(ctx context.Context, c *contribution.Contribution) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockContributionRepository) GetByID(ctx context.Context, id uuid.UUID) (*contribution.Contribution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contribution.Contribution), args.Error(1)
}

func (m *MockContributionRepository) GetByReference(ctx context.Context, reference string) (*contribution.Contribution, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contribution.Contribution), args.Error(1)
}

func (m *MockContributionRepository) LockByID(ctx context.Context, id uuid.UUID) (*contribution.Contribution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contribution.Contribution), args.Error(1)
}

func (m *MockContributionRepository) LockByReference(ctx context.Context, reference string) (*contribution.Contribution, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contribution.Contribution), args.Error(1)
}

func (m *MockContributionRepository) MarkTerminal(ctx context.Context, id uuid.UUID, status shared.ContributionStatus, paidAt *time.Time, preimage string) error {
	args := m.Called(ctx, id, status, paidAt, preimage)
	return args.Error(0)
}

func (m *MockContributionRepository) ListPending(ctx context.Context, now time.Time, limit int) ([]*contribution.Contribution, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*contribution.Contribution), args.Error(1)
}

func (m *MockContributionRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*contribution.Contribution, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*contribution.Contribution), args.Error(1)
}

func (m *MockContributionRepository) List(ctx context.Context, filter contribution.ListFilter, limit, offset int) ([]*contribution.Contribution, error) {
	args := m.Called(ctx, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*contribution.Contribution), args.Error(1)
}

func (m *MockContributionRepository) Count(ctx context.Context, filter contribution.ListFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockContributionRepository) SumPaidByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	args := m.Called(ctx, campaignID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockContributionRepository) WithTx(tx pgx.Tx) contribution.Repository {
	return m
}

type MockCampaignRepository struct {
	mock.Mock
}

func (m *MockCampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*campaign.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) Credit(ctx context.Context, id uuid.UUID, amount int64) (bool, error) {
	args := m.Called(ctx, id, amount)
	return args.Bool(0), args.Error(1)
}

func (m *MockCampaignRepository) SetCurrentAmount(ctx context.Context, id uuid.UUID, amount int64) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

func (m *MockCampaignRepository) WithTx(tx pgx.Tx) campaign.Repository {
	return m
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string { return "lnbits" }

func (m *MockProvider) CreateCharge(ctx context.Context, req provider.CreateChargeRequest) (*provider.Charge, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Charge), args.Error(1)
}

func (m *MockProvider) GetStatus(ctx context.Context, reference string) (*provider.ChargeState, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.ChargeState), args.Error(1)
}

func (m *MockProvider) DecodeInstruction(ctx context.Context, instruction string) (*provider.DecodedInstruction, error) {
	args := m.Called(ctx, instruction)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.DecodedInstruction), args.Error(1)
}

func activeCampaign() *campaign.Campaign {
	now := time.Now().UTC()
	return &campaign.Campaign{
		ID:            uuid.New(),
		Title:         "Community Well",
		TargetAmount:  1_000_000,
		CurrentAmount: 250_000,
		Currency:      shared.CurrencySats,
		Status:        shared.CampaignStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func testCharge() *provider.Charge {
	return &provider.Charge{
		Reference:          "hash123",
		PaymentInstruction: "lnbc21u1p...",
		ExpiresAt:          time.Now().UTC().Add(time.Hour),
	}
}

func TestContributionService_CreateContribution(t *testing.T) {
	ctx := context.Background()

	newService := func(contributionRepo *MockContributionRepository, campaignRepo *MockCampaignRepository, paymentProvider *MockProvider) ContributionService {
		return NewContributionService(contributionRepo, campaignRepo, paymentProvider, nil, time.Hour)
	}

	t.Run("Success", func(t *testing.T) {
		contributionRepo := new(MockContributionRepository)
		campaignRepo := new(MockCampaignRepository)
		paymentProvider := new(MockProvider)
		camp := activeCampaign()
		name := "Ada"

		campaignRepo.On("GetByID", ctx, camp.ID).Return(camp, nil)
		paymentProvider.On("CreateCharge", ctx, mock.MatchedBy(func(req provider.CreateChargeRequest) bool {
			return req.Amount == 2100 &&
				req.Memo == "Contribution to Community Well from Ada" &&
				req.Expiry == time.Hour
		})).Return(testCharge(), nil)
		contributionRepo.On("Create", ctx, mock.AnythingOfType("*contribution.Contribution")).Return(nil)

		svc := newService(contributionRepo, campaignRepo, paymentProvider)
		contrib, err := svc.CreateContribution(ctx, CreateContributionParams{
			CampaignID:      camp.ID,
			Amount:          2100,
			Currency:        shared.CurrencySats,
			ContributorName: &name,
		})

		require.NoError(t, err)
		assert.Equal(t, camp.ID, contrib.CampaignID)
		assert.Equal(t, int64(2100), contrib.Amount)
		assert.Equal(t, "hash123", contrib.Reference)
		assert.Equal(t, "lnbc21u1p...", contrib.PaymentRequest)
		assert.Equal(t, shared.ContributionStatusPending, contrib.Status)
		contributionRepo.AssertExpectations(t)
		campaignRepo.AssertExpectations(t)
		paymentProvider.AssertExpectations(t)
	})

	t.Run("BTCAmountIsConverted", func(t *testing.T) {
		contributionRepo := new(MockContributionRepository)
		campaignRepo := new(MockCampaignRepository)
		paymentProvider := new(MockProvider)
		camp := activeCampaign()

		campaignRepo.On("GetByID", ctx, camp.ID).Return(camp, nil)
		paymentProvider.On("CreateCharge", ctx, mock.MatchedBy(func(req provider.CreateChargeRequest) bool {
			return req.Amount == 50_000
		})).Return(testCharge(), nil)
		contributionRepo.On("Create", ctx, mock.Anything).Return(nil)

		svc := newService(contributionRepo, campaignRepo, paymentProvider)
		contrib, err := svc.CreateContribution(ctx, CreateContributionParams{
			CampaignID:  camp.ID,
			Amount:      0.0005,
			Currency:    shared.CurrencyBTC,
			IsAnonymous: true,
		})

		require.NoError(t, err)
		assert.Equal(t, int64(50_000), contrib.Amount)
		assert.Equal(t, shared.CurrencySats, contrib.Currency)
	})

	t.Run("AnonymousMemoHidesName", func(t *testing.T) {
		contributionRepo := new(MockContributionRepository)
		campaignRepo := new(MockCampaignRepository)
		paymentProvider := new(MockProvider)
		camp := activeCampaign()
		name := "Ada"

		campaignRepo.On("GetByID", ctx, camp.ID).Return(camp, nil)
		paymentProvider.On("CreateCharge", ctx, mock.MatchedBy(func(req provider.CreateChargeRequest) bool {
			return req.Memo == "Contribution to Community Well from Anonymous"
		})).Return(testCharge(), nil)
		contributionRepo.On("Create", ctx, mock.Anything).Return(nil)

		svc := newService(contributionRepo, campaignRepo, paymentProvider)
		contrib, err := svc.CreateContribution(ctx, CreateContributionParams{
			CampaignID:      camp.ID,
			Amount:          2100,
			ContributorName: &name,
			IsAnonymous:     true,
		})

		require.NoError(t, err)
		assert.Nil(t, contrib.ContributorName)
		paymentProvider.AssertExpectations(t)
	})

	t.Run("FractionalSatoshisRejected", func(t *testing.T) {
		svc := newService(new(MockContributionRepository), new(MockCampaignRepository), new(MockProvider))

		_, err := svc.CreateContribution(ctx, CreateContributionParams{
			CampaignID: uuid.New(),
			Amount:     100.5,
			Currency:   shared.CurrencySats,
		})
		assert.ErrorIs(t, err, contribution.ErrInvalidAmount)
	})

	t.Run("UnsupportedCurrency", func(t *testing.T) {
		svc := newService(new(MockContributionRepository), new(MockCampaignRepository), new(MockProvider))

		_, err := svc.CreateContribution(ctx, CreateContributionParams{
			CampaignID: uuid.New(),
			Amount:     2100,
			Currency:   "USD",
		})
		assert.ErrorIs(t, err, contribution.ErrInvalidCurrency)
	})

	t.Run("AmountBelowMinimum", func(t *testing.T) {
		svc := newService(new(MockContributionRepository), new(MockCampaignRepository), new(MockProvider))

		_, err := svc.CreateContribution(ctx, CreateContributionParams{
			CampaignID: uuid.New(),
			Amount:     50,
			Currency:   shared.CurrencySats,
		})
		assert.ErrorIs(t, err, contribution.ErrAmountBelowMinimum)
	})

	t.Run("CampaignNotFound", func(t *testing.T) {
		contributionRepo := new(MockContributionRepository)
		campaignRepo := new(MockCampaignRepository)
		paymentProvider := new(MockProvider)
		id := uuid.New()
		campaignRepo.On("GetByID", ctx, id).Return(nil, campaign.ErrNotFound{ID: id})

		svc := newService(contributionRepo, campaignRepo, paymentProvider)
		_, err := svc.CreateContribution(ctx, CreateContributionParams{
			CampaignID: id,
			Amount:     2100,
		})

		assert.ErrorIs(t, err, campaign.ErrNotFound{})
		paymentProvider.AssertNotCalled(t, "CreateCharge")
	})

	t.Run("CampaignNotAcceptingContributions", func(t *testing.T) {
		contributionRepo := new(MockContributionRepository)
		campaignRepo := new(MockCampaignRepository)
		paymentProvider := new(MockProvider)
		camp := activeCampaign()
		camp.Status = shared.CampaignStatusCompleted
		campaignRepo.On("GetByID", ctx, camp.ID).Return(camp, nil)

		svc := newService(contributionRepo, campaignRepo, paymentProvider)
		_, err := svc.CreateContribution(ctx, CreateContributionParams{
			CampaignID: camp.ID,
			Amount:     2100,
		})

		assert.ErrorIs(t, err, campaign.ErrNotActive{})
		paymentProvider.AssertNotCalled(t, "CreateCharge")
	})

	t.Run("ProviderUnavailable", func(t *testing.T) {
		contributionRepo := new(MockContributionRepository)
		campaignRepo := new(MockCampaignRepository)
		paymentProvider := new(MockProvider)
		camp := activeCampaign()

		campaignRepo.On("GetByID", ctx, camp.ID).Return(camp, nil)
		paymentProvider.On("CreateCharge", ctx, mock.Anything).Return(nil, provider.ErrUnavailable)

		svc := newService(contributionRepo, campaignRepo, paymentProvider)
		_, err := svc.CreateContribution(ctx, CreateContributionParams{
			CampaignID: camp.ID,
			Amount:     2100,
		})

		assert.ErrorIs(t, err, provider.ErrUnavailable)
		contributionRepo.AssertNotCalled(t, "Create")
	})
}

func TestContributionService_ListContributions(t *testing.T) {
	ctx := context.Background()

	t.Run("PaginatesWithOffset", func(t *testing.T) {
		contributionRepo := new(MockContributionRepository)
		campaignID := uuid.New()
		filter := contribution.ListFilter{CampaignID: &campaignID}
		expected := []*contribution.Contribution{{ID: uuid.New()}}

		contributionRepo.On("List", ctx, filter, 10, 20).Return(expected, nil)
		contributionRepo.On("Count", ctx, filter).Return(int64(31), nil)

		svc := NewContributionService(contributionRepo, new(MockCampaignRepository), new(MockProvider), nil, time.Hour)
		contributions, total, err := svc.ListContributions(ctx, filter, 3, 10)

		require.NoError(t, err)
		assert.Equal(t, expected, contributions)
		assert.Equal(t, int64(31), total)
		contributionRepo.AssertExpectations(t)
	})

	t.Run("ListFailure", func(t *testing.T) {
		contributionRepo := new(MockContributionRepository)
		contributionRepo.On("List", ctx, mock.Anything, 10, 0).Return(nil, assert.AnError)

		svc := NewContributionService(contributionRepo, new(MockCampaignRepository), new(MockProvider), nil, time.Hour)
		_, _, err := svc.ListContributions(ctx, contribution.ListFilter{}, 1, 10)

		assert.Error(t, err)
		contributionRepo.AssertNotCalled(t, "Count")
	})
}
