package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/crowdpay-contribution-ledger/internal/config"
)

// LNbitsProvider talks to an LNbits instance. Only the invoice (read) key is
// used: it is sufficient for creating invoices and checking their status, and
// leaking it cannot move funds.
type LNbitsProvider struct {
	baseURL    string
	invoiceKey string
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewLNbitsProvider creates an LNbits-backed provider
func NewLNbitsProvider(logger *slog.Logger, cfg *config.LNbitsConfig, httpClient *http.Client) *LNbitsProvider {
	return &LNbitsProvider{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		invoiceKey: cfg.InvoiceKey,
		webhookURL: cfg.WebhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (p *LNbitsProvider) Name() string {
	return "lnbits"
}

type lnbitsCreateRequest struct {
	Out     bool   `json:"out"` // false = incoming payment (invoice)
	Amount  int64  `json:"amount"`
	Memo    string `json:"memo"`
	Expiry  int64  `json:"expiry"` // seconds
	Webhook string `json:"webhook,omitempty"`
}

type lnbitsCreateResponse struct {
	PaymentHash    string `json:"payment_hash"`
	PaymentRequest string `json:"payment_request"`
	CheckingID     string `json:"checking_id"`
}

// CreateCharge creates an invoice via POST /api/v1/payments
func (p *LNbitsProvider) CreateCharge(ctx context.Context, req CreateChargeRequest) (*Charge, error) {
	body := lnbitsCreateRequest{
		Out:     false,
		Amount:  req.Amount,
		Memo:    req.Memo,
		Expiry:  int64(req.Expiry.Seconds()),
		Webhook: p.webhookURL,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lnbits invoice request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/v1/payments", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build lnbits invoice request: %w", err)
	}
	p.setHeaders(httpReq)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: lnbits invoice creation: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: lnbits returned status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: lnbits returned status %d: %s", ErrRejected, resp.StatusCode, string(detail))
	}

	var created lnbitsCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("%w: failed to decode lnbits invoice response: %v", ErrUnavailable, err)
	}
	if created.PaymentHash == "" || created.PaymentRequest == "" {
		return nil, fmt.Errorf("%w: lnbits response missing payment_hash or payment_request", ErrRejected)
	}

	p.logger.Info("Created LNbits invoice", "payment_hash", created.PaymentHash, "amount", req.Amount)

	return &Charge{
		Reference:          created.PaymentHash,
		PaymentInstruction: created.PaymentRequest,
		ExpiresAt:          time.Now().UTC().Add(req.Expiry),
	}, nil
}

type lnbitsStatusResponse struct {
	Paid     bool   `json:"paid"`
	Pending  bool   `json:"pending"`
	Expired  bool   `json:"expired"`
	Status   string `json:"status"`
	Preimage string `json:"preimage"`
}

// GetStatus checks an invoice via GET /api/v1/payments/{payment_hash}.
// Invoice expiry is not mapped to a terminal status here: the expiry sweeper
// owns that decision based on the stored expires_at.
func (p *LNbitsProvider) GetStatus(ctx context.Context, reference string) (*ChargeState, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/v1/payments/"+reference, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build lnbits status request: %w", err)
	}
	p.setHeaders(httpReq)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: lnbits status check: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &ChargeState{Status: ChargeStatusUnknown}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: lnbits returned status %d", ErrUnavailable, resp.StatusCode)
	}

	var status lnbitsStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("%w: failed to decode lnbits status response: %v", ErrUnavailable, err)
	}

	switch {
	case status.Paid:
		return &ChargeState{Status: ChargeStatusPaid, Preimage: status.Preimage}, nil
	case status.Status == "failed":
		return &ChargeState{Status: ChargeStatusFailed}, nil
	case status.Expired:
		return &ChargeState{Status: ChargeStatusUnknown}, nil
	default:
		return &ChargeState{Status: ChargeStatusPending}, nil
	}
}

type lnbitsDecodeResponse struct {
	PaymentHash string `json:"payment_hash"`
	AmountMsat  int64  `json:"amount_msat"`
	Description string `json:"description"`
	Date        int64  `json:"date"`
	Expiry      int64  `json:"expiry"`
}

// DecodeInstruction decodes a BOLT11 invoice via POST /api/v1/payments/decode
func (p *LNbitsProvider) DecodeInstruction(ctx context.Context, instruction string) (*DecodedInstruction, error) {
	payload, err := json.Marshal(map[string]string{"data": instruction})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lnbits decode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/v1/payments/decode", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build lnbits decode request: %w", err)
	}
	p.setHeaders(httpReq)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: lnbits decode: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: lnbits returned status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: lnbits could not decode instruction, status %d", ErrRejected, resp.StatusCode)
	}

	var decoded lnbitsDecodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: failed to decode lnbits decode response: %v", ErrUnavailable, err)
	}

	return &DecodedInstruction{
		Reference:   decoded.PaymentHash,
		Amount:      decoded.AmountMsat / 1000,
		Description: decoded.Description,
		ExpiresAt:   time.Unix(decoded.Date+decoded.Expiry, 0).UTC(),
	}, nil
}

func (p *LNbitsProvider) setHeaders(req *http.Request) {
	req.Header.Set("X-Api-Key", p.invoiceKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}
