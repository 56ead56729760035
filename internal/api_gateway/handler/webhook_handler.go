package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crowdpay-contribution-ledger/internal/api_gateway/middleware"
	"github.com/crowdpay-contribution-ledger/internal/domain/audit"
	"github.com/crowdpay-contribution-ledger/internal/domain/contribution"
	"github.com/crowdpay-contribution-ledger/internal/domain/shared"
	"github.com/crowdpay-contribution-ledger/internal/provider"
	"github.com/crowdpay-contribution-ledger/internal/webhookauth"
)

// SignatureHeader carries the provider's HMAC signature of the raw body
const SignatureHeader = "X-Webhook-Signature"

// maxWebhookBodySize caps webhook payloads at 1 MiB
const maxWebhookBodySize = 1 << 20

// ObservationApplier consumes observations produced by webhook deliveries
type ObservationApplier interface {
	Apply(ctx context.Context, obs shared.Observation) error
}

// WebhookHandler receives push notifications from the payment provider and
// converts them into observations. A webhook is a hint with the same
// authority as a poll result: it goes through the same reconciler path and
// duplicates are discarded there.
type WebhookHandler struct {
	verifier     *webhookauth.Verifier
	applier      ObservationApplier
	decoder      provider.Provider
	auditTrail   audit.Repository
	providerName string
	logger       *slog.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(
	logger *slog.Logger,
	verifier *webhookauth.Verifier,
	applier ObservationApplier,
	decoder provider.Provider,
	auditTrail audit.Repository,
) *WebhookHandler {
	return &WebhookHandler{
		verifier:     verifier,
		applier:      applier,
		decoder:      decoder,
		auditTrail:   auditTrail,
		providerName: decoder.Name(),
		logger:       logger,
	}
}

// webhookPayload is the union of the fields the supported providers post.
// Providers differ in which fields they set; the reference resolution below
// handles both direct payment hashes and raw invoices.
type webhookPayload struct {
	PaymentHash string `json:"payment_hash"`
	Bolt11      string `json:"bolt11"`
	Status      string `json:"status"`
	Paid        *bool  `json:"paid"`
	Preimage    string `json:"preimage"`
}

// Receive handles POST /webhooks/:provider. The raw body is verified against
// the shared HMAC secret before any parsing; rejected deliveries are audited
// and never reach the reconciler.
func (h *WebhookHandler) Receive(c *gin.Context) {
	providerName := c.Param("provider")
	if providerName != h.providerName {
		RespondNotFound(c, "Unknown webhook provider")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodySize))
	if err != nil {
		h.logger.Error("Failed to read webhook body", "error", err)
		RespondBadRequest(c, "Failed to read request body")
		return
	}

	correlationID := middleware.GetCorrelationID(c)

	if err := h.verifier.Verify(body, c.GetHeader(SignatureHeader)); err != nil {
		h.logger.Warn("Rejected webhook with invalid signature",
			"provider", providerName,
			"client_ip", c.ClientIP(),
			"error", err,
		)
		h.recordRejection(c.Request.Context(), body, correlationID, "invalid signature")
		RespondUnauthorized(c, "Invalid webhook signature")
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.recordRejection(c.Request.Context(), body, correlationID, "malformed payload")
		RespondBadRequest(c, "Malformed webhook payload")
		return
	}

	reference := payload.PaymentHash
	if reference == "" && payload.Bolt11 != "" {
		decoded, err := h.decoder.DecodeInstruction(c.Request.Context(), payload.Bolt11)
		if err != nil {
			h.logger.Warn("Failed to decode invoice from webhook payload", "error", err)
			h.recordRejection(c.Request.Context(), body, correlationID, "undecodable invoice")
			RespondBadRequest(c, "Webhook payload carries no resolvable payment reference")
			return
		}
		reference = decoded.Reference
	}
	if reference == "" {
		h.recordRejection(c.Request.Context(), body, correlationID, "missing payment reference")
		RespondBadRequest(c, "Webhook payload carries no payment reference")
		return
	}

	obs := shared.Observation{
		Reference:     reference,
		Status:        mapWebhookStatus(payload),
		Preimage:      payload.Preimage,
		Source:        shared.ObservationSourceWebhook,
		CorrelationID: correlationID,
		ObservedAt:    time.Now().UTC(),
	}

	if err := h.applier.Apply(c.Request.Context(), obs); err != nil {
		if errors.Is(err, contribution.ErrNotFound{}) {
			h.logger.Warn("Webhook references unknown contribution", "reference", reference)
			h.recordRejection(c.Request.Context(), body, correlationID, "unknown payment reference")
			RespondNotFound(c, "Unknown payment reference")
			return
		}
		h.logger.Error("Failed to apply webhook observation", "reference", reference, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, gin.H{"status": "accepted", "reference": reference})
}

// mapWebhookStatus maps a webhook payload to an observation status. An
// explicit status field wins; otherwise the paid flag decides. A signed
// delivery with neither is treated as a payment notification because that is
// the only event the supported providers push.
func mapWebhookStatus(payload webhookPayload) shared.ObservationStatus {
	switch payload.Status {
	case "paid", "settled", "success", "complete":
		return shared.ObservationStatusPaid
	case "failed", "canceled", "cancelled":
		return shared.ObservationStatusFailed
	case "pending":
		return shared.ObservationStatusPending
	case "expired":
		// Expiry is decided by the sweeper from the stored deadline.
		return shared.ObservationStatusUnknown
	}
	if payload.Paid != nil {
		if *payload.Paid {
			return shared.ObservationStatusPaid
		}
		return shared.ObservationStatusPending
	}
	return shared.ObservationStatusPaid
}

func (h *WebhookHandler) recordRejection(ctx context.Context, body []byte, correlationID, reason string) {
	event := audit.NewEvent(audit.EventTypeWebhookRejected, "")
	event.Source = shared.ObservationSourceWebhook
	event.Provider = h.providerName
	event.CorrelationID = correlationID
	event.Note = reason
	if json.Valid(body) {
		event.Payload = json.RawMessage(body)
	}
	if err := h.auditTrail.Record(ctx, event); err != nil {
		h.logger.Warn("Failed to record webhook rejection audit event", "reason", reason, "error", err)
	}
}
