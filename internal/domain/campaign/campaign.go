package campaign

import (
	"time"

	"github.com/crowdpay-contribution-ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Campaign owns the running total that settled contributions credit.
// CurrentAmount is monotonically non-decreasing while the campaign is open.
type Campaign struct {
	ID            uuid.UUID             `json:"id"`
	Title         string                `json:"title"`
	TargetAmount  int64                 `json:"target_amount"`  // satoshis
	CurrentAmount int64                 `json:"current_amount"` // satoshis
	Currency      string                `json:"currency"`
	Status        shared.CampaignStatus `json:"status"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// AcceptingContributions reports whether new contributions may be created
func (c *Campaign) AcceptingContributions() bool {
	return c.Status == shared.CampaignStatusActive
}

// GoalReached reports whether the running total covers the target
func (c *Campaign) GoalReached() bool {
	return c.CurrentAmount >= c.TargetAmount
}

// ProgressPercent returns funding progress capped at 100
func (c *Campaign) ProgressPercent() float64 {
	if c.TargetAmount <= 0 {
		return 0
	}
	p := float64(c.CurrentAmount) / float64(c.TargetAmount) * 100
	if p > 100 {
		return 100
	}
	return p
}

// RemainingAmount returns the satoshis still needed to reach the target
func (c *Campaign) RemainingAmount() int64 {
	if remaining := c.TargetAmount - c.CurrentAmount; remaining > 0 {
		return remaining
	}
	return 0
}
