package handler

// CreateContributionRequest represents a request to create a new contribution.
// Amount is interpreted per Currency: whole satoshis for sats, a fractional
// bitcoin amount for BTC.
type CreateContributionRequest struct {
	CampaignID      string  `json:"campaign_id" binding:"required,uuid"`
	Amount          float64 `json:"amount" binding:"required,gt=0"`
	Currency        string  `json:"currency" binding:"omitempty,oneof=SATS BTC sats btc"`
	ContributorName *string `json:"contributor_name,omitempty"`
	Message         *string `json:"message,omitempty"`
	IsAnonymous     bool    `json:"is_anonymous"`
}

// ContributionResponse represents a contribution in API responses
type ContributionResponse struct {
	ID              string `json:"id"`
	CampaignID      string `json:"campaign_id"`
	ContributorName string `json:"contributor_name"`
	Message         string `json:"message,omitempty"`
	IsAnonymous     bool   `json:"is_anonymous"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
	Reference       string `json:"reference"`
	PaymentRequest  string `json:"payment_request"`
	Preimage        string `json:"preimage,omitempty"`
	CreatedAt       string `json:"created_at"`
	ExpiresAt       string `json:"expires_at"`
	PaidAt          string `json:"paid_at,omitempty"`
}

// ContributionStatusResponse is the lightweight payload clients poll while
// waiting for a payment to confirm
type ContributionStatusResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Terminal bool   `json:"terminal"`
	IsPaid   bool   `json:"is_paid"`
	PaidAt   string `json:"paid_at,omitempty"`
	Preimage string `json:"preimage,omitempty"`
}

// ContributionListResponse represents a list of contributions in API responses
type ContributionListResponse struct {
	Contributions []ContributionResponse `json:"contributions"`
}

// CampaignResponse represents a campaign and its funding progress in API responses
type CampaignResponse struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	TargetAmount    int64   `json:"target_amount"`
	CurrentAmount   int64   `json:"current_amount"`
	RemainingAmount int64   `json:"remaining_amount"`
	ProgressPercent float64 `json:"progress_percent"`
	Currency        string  `json:"currency"`
	Status          string  `json:"status"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// ListContributionsParams represents filters for the contribution list endpoint
type ListContributionsParams struct {
	CampaignID string `form:"campaign_id" binding:"omitempty,uuid"`
	Status     string `form:"status" binding:"omitempty,oneof=pending paid failed expired cancelled"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}
