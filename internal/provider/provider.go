// Package provider abstracts the Lightning payment backend behind a single
// capability interface. Callers never see provider-specific request or
// response shapes; the backend is selected by configuration, one
// implementation per provider.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/crowdpay-contribution-ledger/internal/config"
)

// Common errors
var (
	// ErrUnavailable indicates a transient provider failure. Callers must
	// treat it as "no information", never as a negative payment status.
	ErrUnavailable = errors.New("payment provider unavailable")

	// ErrRejected indicates the provider refused to create a charge
	ErrRejected = errors.New("payment provider rejected the charge")
)

// ChargeStatus is the provider's view of a charge
type ChargeStatus string

const (
	ChargeStatusUnknown ChargeStatus = "unknown"
	ChargeStatusPending ChargeStatus = "pending"
	ChargeStatusPaid    ChargeStatus = "paid"
	ChargeStatusFailed  ChargeStatus = "failed"
)

// CreateChargeRequest carries the parameters for a new charge
type CreateChargeRequest struct {
	Amount int64 // satoshis
	Memo   string
	Expiry time.Duration
}

// Charge is a provider-issued request for payment
type Charge struct {
	Reference          string // provider's unique identifier (payment hash)
	PaymentInstruction string // BOLT11 invoice or checkout URL, for QR display
	ExpiresAt          time.Time
}

// ChargeState is a point-in-time status report for a charge
type ChargeState struct {
	Status   ChargeStatus
	Preimage string // proof of payment, set once paid when the backend reports it
}

// DecodedInstruction is the result of decoding a payment instruction string
type DecodedInstruction struct {
	Reference   string
	Amount      int64 // satoshis
	Description string
	ExpiresAt   time.Time
}

// Provider is the uniform capability over whichever payment backend is
// configured. Both calls may fail with ErrUnavailable; never infer paid from
// the absence of an error.
type Provider interface {
	Name() string
	CreateCharge(ctx context.Context, req CreateChargeRequest) (*Charge, error)
	GetStatus(ctx context.Context, reference string) (*ChargeState, error)
	DecodeInstruction(ctx context.Context, instruction string) (*DecodedInstruction, error)
}

// New selects a backend implementation from configuration
func New(logger *slog.Logger, cfg *config.ProviderConfig) (Provider, error) {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	switch cfg.Backend {
	case "lnbits":
		return NewLNbitsProvider(logger, &cfg.LNbits, httpClient), nil
	case "bitnob":
		return NewBitnobProvider(logger, &cfg.Bitnob, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown provider backend: %q", cfg.Backend)
	}
}
