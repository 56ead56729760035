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

// BitnobProvider talks to the Bitnob lightning API. It is an alternative
// backend to LNbits with the same capability surface.
type BitnobProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewBitnobProvider creates a Bitnob-backed provider
func NewBitnobProvider(logger *slog.Logger, cfg *config.BitnobConfig, httpClient *http.Client) *BitnobProvider {
	return &BitnobProvider{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (p *BitnobProvider) Name() string {
	return "bitnob"
}

type bitnobCreateRequest struct {
	Satoshis    int64  `json:"satoshis"`
	Description string `json:"description"`
	ExpiresAt   string `json:"expiresAt"`
}

type bitnobEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type bitnobInvoice struct {
	ID              string `json:"id"`
	Request         string `json:"request"`
	Status          string `json:"status"`
	PaymentPreimage string `json:"paymentPreimage"`
}

// CreateCharge creates an invoice via POST /api/v1/wallets/ln/createinvoice
func (p *BitnobProvider) CreateCharge(ctx context.Context, req CreateChargeRequest) (*Charge, error) {
	expiresAt := time.Now().UTC().Add(req.Expiry)
	body := bitnobCreateRequest{
		Satoshis:    req.Amount,
		Description: req.Memo,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bitnob invoice request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/v1/wallets/ln/createinvoice", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build bitnob invoice request: %w", err)
	}
	p.setHeaders(httpReq)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: bitnob invoice creation: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: bitnob returned status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: bitnob returned status %d: %s", ErrRejected, resp.StatusCode, string(detail))
	}

	var envelope bitnobEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: failed to decode bitnob invoice response: %v", ErrUnavailable, err)
	}

	var invoice bitnobInvoice
	if err := json.Unmarshal(envelope.Data, &invoice); err != nil {
		return nil, fmt.Errorf("%w: failed to decode bitnob invoice data: %v", ErrUnavailable, err)
	}
	if invoice.ID == "" || invoice.Request == "" {
		return nil, fmt.Errorf("%w: bitnob response missing invoice id or request", ErrRejected)
	}

	p.logger.Info("Created Bitnob invoice", "invoice_id", invoice.ID, "amount", req.Amount)

	return &Charge{
		Reference:          invoice.ID,
		PaymentInstruction: invoice.Request,
		ExpiresAt:          expiresAt,
	}, nil
}

// GetStatus checks an invoice via GET /api/v1/wallets/ln/invoice/{id}
func (p *BitnobProvider) GetStatus(ctx context.Context, reference string) (*ChargeState, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/v1/wallets/ln/invoice/"+reference, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build bitnob status request: %w", err)
	}
	p.setHeaders(httpReq)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: bitnob status check: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &ChargeState{Status: ChargeStatusUnknown}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: bitnob returned status %d", ErrUnavailable, resp.StatusCode)
	}

	var envelope bitnobEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: failed to decode bitnob status response: %v", ErrUnavailable, err)
	}

	var invoice bitnobInvoice
	if err := json.Unmarshal(envelope.Data, &invoice); err != nil {
		return nil, fmt.Errorf("%w: failed to decode bitnob status data: %v", ErrUnavailable, err)
	}

	switch strings.ToLower(invoice.Status) {
	case "paid", "settled":
		return &ChargeState{Status: ChargeStatusPaid, Preimage: invoice.PaymentPreimage}, nil
	case "failed", "canceled", "cancelled":
		return &ChargeState{Status: ChargeStatusFailed}, nil
	case "pending", "unpaid", "open":
		return &ChargeState{Status: ChargeStatusPending}, nil
	default:
		return &ChargeState{Status: ChargeStatusUnknown}, nil
	}
}

// DecodeInstruction is not supported by the Bitnob API
func (p *BitnobProvider) DecodeInstruction(_ context.Context, _ string) (*DecodedInstruction, error) {
	return nil, fmt.Errorf("%w: bitnob does not expose an invoice decode endpoint", ErrRejected)
}

func (p *BitnobProvider) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}
