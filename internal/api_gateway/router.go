package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crowdpay-contribution-ledger/internal/api_gateway/handler"
	"github.com/crowdpay-contribution-ledger/internal/api_gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	contributionHandler *handler.ContributionHandler,
	campaignHandler *handler.CampaignHandler,
	webhookHandler *handler.WebhookHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Contribution operations
		contributions := v1.Group("/contributions")
		{
			contributions.POST("", contributionHandler.Create)
			contributions.GET("", contributionHandler.List)
			contributions.GET("/:id", contributionHandler.GetByID)
			contributions.GET("/:id/status", contributionHandler.GetStatus)
			contributions.POST("/:id/cancel", contributionHandler.Cancel)
		}

		// Campaign read and reconciliation operations
		campaigns := v1.Group("/campaigns")
		{
			campaigns.GET("/:id", campaignHandler.GetByID)
			campaigns.POST("/:id/reconcile", campaignHandler.Reconcile)
		}
	}

	// Provider push notifications
	r.POST("/webhooks/:provider", webhookHandler.Receive)

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
