package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/crowdpay-contribution-ledger/internal/api_gateway/service"
	"github.com/crowdpay-contribution-ledger/internal/domain/campaign"
)

// CampaignHandler handles HTTP requests for campaign operations
type CampaignHandler struct {
	campaignService service.CampaignService
	logger          *slog.Logger
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(logger *slog.Logger, campaignService service.CampaignService) *CampaignHandler {
	return &CampaignHandler{
		campaignService: campaignService,
		logger:          logger,
	}
}

// GetByID retrieves a campaign with its funding progress, returning 404 if
// not found
func (h *CampaignHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid campaign ID")
		return
	}

	camp, err := h.campaignService.GetCampaignByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, campaign.ErrNotFound{}) {
			RespondNotFound(c, "Campaign not found")
			return
		}
		h.logger.Error("Failed to get campaign", "id", id, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapCampaignToResponse(camp))
}

// Reconcile recomputes the campaign total from its paid contributions and
// reports any drift. With ?repair=true the stored total is overwritten with
// the recomputed sum.
func (h *CampaignHandler) Reconcile(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid campaign ID")
		return
	}
	repair := c.Query("repair") == "true"

	report, err := h.campaignService.ReconcileCampaign(c.Request.Context(), id, repair)
	if err != nil {
		if errors.Is(err, campaign.ErrNotFound{}) {
			RespondNotFound(c, "Campaign not found")
			return
		}
		h.logger.Error("Failed to reconcile campaign", "id", id, "repair", repair, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, report)
}

// mapCampaignToResponse maps a campaign entity to a campaign response DTO
func mapCampaignToResponse(camp *campaign.Campaign) CampaignResponse {
	return CampaignResponse{
		ID:              camp.ID.String(),
		Title:           camp.Title,
		TargetAmount:    camp.TargetAmount,
		CurrentAmount:   camp.CurrentAmount,
		RemainingAmount: camp.RemainingAmount(),
		ProgressPercent: camp.ProgressPercent(),
		Currency:        camp.Currency,
		Status:          string(camp.Status),
		CreatedAt:       camp.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       camp.UpdatedAt.Format(time.RFC3339),
	}
}
