package contribution

import (
	"errors"
	"time"

	"github.com/crowdpay-contribution-ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// MinAmountSats is the smallest accepted contribution.
const MinAmountSats = 100

// Common errors
var (
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrAmountBelowMinimum = errors.New("amount is below the minimum contribution")
	ErrInvalidCurrency    = errors.New("currency must be SATS or BTC")
	ErrEmptyReference     = errors.New("provider reference cannot be empty")
)

// Contribution is one donor's pledge toward one campaign. The provider
// reference and payment request are immutable after creation; the status is
// write-once after the first terminal transition.
type Contribution struct {
	ID              uuid.UUID                 `json:"id"`
	CampaignID      uuid.UUID                 `json:"campaign_id"`
	ContributorName *string                   `json:"contributor_name,omitempty"`
	Message         *string                   `json:"message,omitempty"`
	IsAnonymous     bool                      `json:"is_anonymous"`
	Amount          int64                     `json:"amount"` // satoshis
	Currency        string                    `json:"currency"`
	Status          shared.ContributionStatus `json:"status"`
	Reference       string                    `json:"reference"`       // provider charge reference (payment hash)
	PaymentRequest  string                    `json:"payment_request"` // BOLT11 invoice or checkout URL
	Preimage        string                    `json:"preimage,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
	ExpiresAt       time.Time                 `json:"expires_at"`
	PaidAt          *time.Time                `json:"paid_at,omitempty"`
}

// New creates a pending contribution with the given charge data.
// Contributor identity is dropped up front for anonymous contributions.
func New(campaignID uuid.UUID, amount int64, contributorName, message *string, anonymous bool, reference, paymentRequest string, expiresAt time.Time) (*Contribution, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount < MinAmountSats {
		return nil, ErrAmountBelowMinimum
	}
	if reference == "" {
		return nil, ErrEmptyReference
	}

	if anonymous {
		contributorName = nil
	}

	return &Contribution{
		ID:              uuid.New(),
		CampaignID:      campaignID,
		ContributorName: contributorName,
		Message:         message,
		IsAnonymous:     anonymous,
		Amount:          amount,
		Currency:        shared.CurrencySats,
		Status:          shared.ContributionStatusPending,
		Reference:       reference,
		PaymentRequest:  paymentRequest,
		CreatedAt:       time.Now().UTC(),
		ExpiresAt:       expiresAt,
	}, nil
}

// Terminal reports whether the contribution has reached a terminal state
func (c *Contribution) Terminal() bool {
	return c.Status.IsTerminal()
}

// Expired reports whether the invoice TTL has passed at the given instant
func (c *Contribution) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// DisplayName returns the contributor name shown to other donors
func (c *Contribution) DisplayName() string {
	if c.IsAnonymous || c.ContributorName == nil || *c.ContributorName == "" {
		return "Anonymous"
	}
	return *c.ContributorName
}
