package shared

// ContributionStatus defines the payment lifecycle states of a contribution
type ContributionStatus string

const (
	ContributionStatusPending   ContributionStatus = "pending"
	ContributionStatusPaid      ContributionStatus = "paid"
	ContributionStatusFailed    ContributionStatus = "failed"
	ContributionStatusExpired   ContributionStatus = "expired"
	ContributionStatusCancelled ContributionStatus = "cancelled"
)

// IsTerminal reports whether no further transition is permitted from the status.
// Pending is the only non-terminal state.
func (s ContributionStatus) IsTerminal() bool {
	return s != ContributionStatusPending
}

// CampaignStatus defines campaign lifecycle states
type CampaignStatus string

const (
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
	CampaignStatusExpired   CampaignStatus = "expired"
)

// Currency units accepted on the contribution creation path. Amounts are
// stored in satoshis; BTC input is converted before persistence.
const (
	CurrencySats = "SATS"
	CurrencyBTC  = "BTC"
)

// SatsPerBTC is the satoshi denomination of one bitcoin.
const SatsPerBTC = 100_000_000
