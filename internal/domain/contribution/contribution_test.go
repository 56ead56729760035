package contribution

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdpay-contribution-ledger/internal/domain/shared"
)

func TestNew(t *testing.T) {
	campaignID := uuid.New()
	expiresAt := time.Now().UTC().Add(time.Hour)

	t.Run("SuccessfulCreation", func(t *testing.T) {
		name := "Ada"
		message := "Good luck!"

		beforeCreation := time.Now().UTC()
		contrib, err := New(campaignID, 2100, &name, &message, false, "hash123", "lnbc21u1p...", expiresAt)

		require.NoError(t, err)
		require.NotNil(t, contrib)

		assert.NotEqual(t, uuid.Nil, contrib.ID)
		assert.Equal(t, campaignID, contrib.CampaignID)
		assert.Equal(t, &name, contrib.ContributorName)
		assert.Equal(t, &message, contrib.Message)
		assert.Equal(t, int64(2100), contrib.Amount)
		assert.Equal(t, shared.CurrencySats, contrib.Currency)
		assert.Equal(t, shared.ContributionStatusPending, contrib.Status)
		assert.Equal(t, "hash123", contrib.Reference)
		assert.Equal(t, "lnbc21u1p...", contrib.PaymentRequest)
		assert.Equal(t, expiresAt, contrib.ExpiresAt)
		assert.Nil(t, contrib.PaidAt)
		assert.WithinDuration(t, beforeCreation, contrib.CreatedAt, time.Second)
	})

	t.Run("AnonymousDropsContributorName", func(t *testing.T) {
		name := "Ada"

		contrib, err := New(campaignID, 2100, &name, nil, true, "hash123", "lnbc21u1p...", expiresAt)

		require.NoError(t, err)
		assert.Nil(t, contrib.ContributorName, "anonymous contributions must not retain the contributor name")
		assert.True(t, contrib.IsAnonymous)
	})

	t.Run("NonPositiveAmount", func(t *testing.T) {
		_, err := New(campaignID, 0, nil, nil, false, "hash123", "lnbc21u1p...", expiresAt)
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, err = New(campaignID, -500, nil, nil, false, "hash123", "lnbc21u1p...", expiresAt)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("AmountBelowMinimum", func(t *testing.T) {
		_, err := New(campaignID, MinAmountSats-1, nil, nil, false, "hash123", "lnbc21u1p...", expiresAt)
		assert.ErrorIs(t, err, ErrAmountBelowMinimum)
	})

	t.Run("EmptyReference", func(t *testing.T) {
		_, err := New(campaignID, 2100, nil, nil, false, "", "lnbc21u1p...", expiresAt)
		assert.ErrorIs(t, err, ErrEmptyReference)
	})
}

func TestContribution_Terminal(t *testing.T) {
	contrib := &Contribution{Status: shared.ContributionStatusPending}
	assert.False(t, contrib.Terminal())

	for _, status := range []shared.ContributionStatus{
		shared.ContributionStatusPaid,
		shared.ContributionStatusFailed,
		shared.ContributionStatusExpired,
		shared.ContributionStatusCancelled,
	} {
		contrib.Status = status
		assert.True(t, contrib.Terminal(), "status %s should be terminal", status)
	}
}

func TestContribution_Expired(t *testing.T) {
	now := time.Now().UTC()
	contrib := &Contribution{ExpiresAt: now.Add(time.Hour)}

	assert.False(t, contrib.Expired(now))
	assert.False(t, contrib.Expired(contrib.ExpiresAt), "the deadline itself is not yet expired")
	assert.True(t, contrib.Expired(now.Add(2*time.Hour)))
}

func TestContribution_DisplayName(t *testing.T) {
	name := "Ada"
	empty := ""

	tests := []struct {
		name     string
		contrib  Contribution
		expected string
	}{
		{"NamedContributor", Contribution{ContributorName: &name}, "Ada"},
		{"AnonymousFlag", Contribution{ContributorName: &name, IsAnonymous: true}, "Anonymous"},
		{"NilName", Contribution{}, "Anonymous"},
		{"EmptyName", Contribution{ContributorName: &empty}, "Anonymous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.contrib.DisplayName())
		})
	}
}
