package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/crowdpay-contribution-ledger/internal/api_gateway/service"
	"github.com/crowdpay-contribution-ledger/internal/domain/campaign"
	"github.com/crowdpay-contribution-ledger/internal/domain/contribution"
	"github.com/crowdpay-contribution-ledger/internal/domain/shared"
	"github.com/crowdpay-contribution-ledger/internal/provider"
)

// ContributionHandler handles HTTP requests for contribution operations
type ContributionHandler struct {
	contributionService service.ContributionService
	logger              *slog.Logger
}

// NewContributionHandler creates a new contribution handler
func NewContributionHandler(logger *slog.Logger, contributionService service.ContributionService) *ContributionHandler {
	return &ContributionHandler{
		contributionService: contributionService,
		logger:              logger,
	}
}

// Create handles creation of a new contribution. The provider charge is
// created synchronously so the response carries the payment request the
// client must display.
func (h *ContributionHandler) Create(c *gin.Context) {
	var req CreateContributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	campaignID, err := uuid.Parse(req.CampaignID)
	if err != nil {
		RespondBadRequest(c, "Invalid campaign ID")
		return
	}

	contrib, err := h.contributionService.CreateContribution(c.Request.Context(), service.CreateContributionParams{
		CampaignID:      campaignID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		ContributorName: req.ContributorName,
		Message:         req.Message,
		IsAnonymous:     req.IsAnonymous,
	})
	if err != nil {
		h.respondCreateError(c, campaignID, err)
		return
	}

	RespondCreated(c, mapContributionToResponse(contrib))
}

func (h *ContributionHandler) respondCreateError(c *gin.Context, campaignID uuid.UUID, err error) {
	switch {
	case errors.Is(err, contribution.ErrInvalidAmount),
		errors.Is(err, contribution.ErrAmountBelowMinimum),
		errors.Is(err, contribution.ErrInvalidCurrency):
		RespondBadRequest(c, err.Error())
	case errors.Is(err, campaign.ErrNotFound{}):
		RespondNotFound(c, "Campaign not found")
	case errors.Is(err, campaign.ErrNotActive{}):
		RespondBadRequest(c, "Campaign is not accepting contributions")
	case errors.Is(err, provider.ErrRejected):
		h.logger.Warn("Provider rejected charge creation", "campaign_id", campaignID, "error", err)
		RespondUnprocessable(c, "Payment provider rejected the charge")
	case errors.Is(err, provider.ErrUnavailable):
		h.logger.Error("Provider unavailable during charge creation", "campaign_id", campaignID, "error", err)
		RespondServiceUnavailable(c, "Payment provider is temporarily unavailable")
	default:
		h.logger.Error("Failed to create contribution", "campaign_id", campaignID, "error", err)
		RespondInternalError(c)
	}
}

// GetByID retrieves a contribution by its ID, returning 404 if not found
func (h *ContributionHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid contribution ID")
		return
	}

	contrib, err := h.contributionService.GetContributionByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, contribution.ErrNotFound{}) {
			RespondNotFound(c, "Contribution not found")
			return
		}
		h.logger.Error("Failed to get contribution", "id", id, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapContributionToResponse(contrib))
}

// GetStatus returns the lightweight status payload clients poll while waiting
// for payment confirmation
func (h *ContributionHandler) GetStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid contribution ID")
		return
	}

	contrib, err := h.contributionService.GetContributionByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, contribution.ErrNotFound{}) {
			RespondNotFound(c, "Contribution not found")
			return
		}
		h.logger.Error("Failed to get contribution status", "id", id, "error", err)
		RespondInternalError(c)
		return
	}

	resp := ContributionStatusResponse{
		ID:       contrib.ID.String(),
		Status:   string(contrib.Status),
		Terminal: contrib.Terminal(),
		IsPaid:   contrib.Status == shared.ContributionStatusPaid,
		Preimage: contrib.Preimage,
	}
	if contrib.PaidAt != nil {
		resp.PaidAt = contrib.PaidAt.Format(time.RFC3339)
	}
	RespondOK(c, resp)
}

// List retrieves a paginated list of contributions, optionally filtered by
// campaign and status
func (h *ContributionHandler) List(c *gin.Context) {
	var filters ListContributionsParams
	if err := c.ShouldBindQuery(&filters); err != nil {
		RespondBadRequest(c, "Invalid filter parameters: "+err.Error())
		return
	}
	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	var filter contribution.ListFilter
	if filters.CampaignID != "" {
		campaignID, err := uuid.Parse(filters.CampaignID)
		if err != nil {
			RespondBadRequest(c, "Invalid campaign ID")
			return
		}
		filter.CampaignID = &campaignID
	}
	if filters.Status != "" {
		status := shared.ContributionStatus(filters.Status)
		filter.Status = &status
	}

	contributions, total, err := h.contributionService.ListContributions(c.Request.Context(), filter, pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to list contributions", "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]ContributionResponse, 0, len(contributions))
	for _, contrib := range contributions {
		responses = append(responses, mapContributionToResponse(contrib))
	}

	RespondWithPaginatedData(c, http.StatusOK, ContributionListResponse{Contributions: responses}, pagination.Page, pagination.PerPage, int(total))
}

// Cancel cancels a pending contribution, returning 409 if it already reached
// a terminal state
func (h *ContributionHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid contribution ID")
		return
	}

	contrib, err := h.contributionService.CancelContribution(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, contribution.ErrNotFound{}):
			RespondNotFound(c, "Contribution not found")
		case errors.Is(err, contribution.ErrAlreadyTerminal{}):
			RespondConflict(c, "Contribution has already reached a terminal state")
		default:
			h.logger.Error("Failed to cancel contribution", "id", id, "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondOK(c, mapContributionToResponse(contrib))
}

// mapContributionToResponse maps a contribution entity to a response DTO.
// Anonymous contributions expose neither the contributor name nor the
// message, only the public display name.
func mapContributionToResponse(contrib *contribution.Contribution) ContributionResponse {
	resp := ContributionResponse{
		ID:              contrib.ID.String(),
		CampaignID:      contrib.CampaignID.String(),
		ContributorName: contrib.DisplayName(),
		IsAnonymous:     contrib.IsAnonymous,
		Amount:          contrib.Amount,
		Currency:        contrib.Currency,
		Status:          string(contrib.Status),
		Reference:       contrib.Reference,
		PaymentRequest:  contrib.PaymentRequest,
		Preimage:        contrib.Preimage,
		CreatedAt:       contrib.CreatedAt.Format(time.RFC3339),
		ExpiresAt:       contrib.ExpiresAt.Format(time.RFC3339),
	}
	if contrib.Message != nil && !contrib.IsAnonymous {
		resp.Message = *contrib.Message
	}
	if contrib.PaidAt != nil {
		resp.PaidAt = contrib.PaidAt.Format(time.RFC3339)
	}
	return resp
}
