// Package reconciler applies provider observations to stored contributions,
// guaranteeing that each contribution settles exactly once no matter how many
// times, in what order, or through which channel its payment is observed.
package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/crowdpay-contribution-ledger/internal/domain/audit"
	"github.com/crowdpay-contribution-ledger/internal/domain/campaign"
	"github.com/crowdpay-contribution-ledger/internal/domain/contribution"
	"github.com/crowdpay-contribution-ledger/internal/domain/shared"
	"github.com/crowdpay-contribution-ledger/internal/platform/messaging/producers"
	"github.com/crowdpay-contribution-ledger/internal/platform/persistence"
)

// SettlementMessage is the payload published when a contribution settles
type SettlementMessage struct {
	ContributionID    uuid.UUID `json:"contribution_id"`
	CampaignID        uuid.UUID `json:"campaign_id"`
	Reference         string    `json:"reference"`
	Amount            int64     `json:"amount"`
	CampaignCompleted bool      `json:"campaign_completed"`
	PaidAt            time.Time `json:"paid_at"`
}

// Reconciler serializes status transitions per contribution. All writes to a
// contribution and its campaign happen inside a single database transaction
// holding the contribution's row lock.
type Reconciler struct {
	txManager     persistence.TxManager
	contributions contribution.Repository
	campaigns     campaign.Repository
	auditTrail    audit.Repository
	publisher     producers.SettlementPublisher
	logger        *slog.Logger
}

func NewReconciler(
	txManager persistence.TxManager,
	contributions contribution.Repository,
	campaigns campaign.Repository,
	auditTrail audit.Repository,
	publisher producers.SettlementPublisher,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		txManager:     txManager,
		contributions: contributions,
		campaigns:     campaigns,
		auditTrail:    auditTrail,
		publisher:     publisher,
		logger:        logger,
	}
}

// Apply processes one observation of a contribution's payment state.
//
// Non-terminal observations (pending, unknown) carry no information that
// changes stored state and are discarded before any locking. Terminal
// observations lock the contribution row, re-check its status under the lock,
// and either apply the transition or discard the observation as a duplicate.
// A paid observation transitions the contribution and credits its campaign in
// the same transaction, so the ledger can never reflect a credit without the
// matching paid contribution or vice versa.
func (r *Reconciler) Apply(ctx context.Context, obs shared.Observation) error {
	if obs.Status != shared.ObservationStatusPaid && obs.Status != shared.ObservationStatusFailed {
		r.logger.Debug("Discarding non-terminal observation",
			"reference", obs.Reference,
			"status", obs.Status,
			"source", obs.Source,
		)
		return nil
	}

	var (
		contrib     *contribution.Contribution
		applied     bool
		latePayment bool
		completed   bool
		paidAt      time.Time
	)

	err := r.txManager.ExecuteTx(ctx, func(tx pgx.Tx) error {
		contributions := r.contributions.WithTx(tx)

		c, err := contributions.LockByReference(ctx, obs.Reference)
		if err != nil {
			return err
		}
		contrib = c

		if c.Terminal() {
			// A concurrent or earlier observation already won. A payment
			// confirmation arriving after the contribution went terminal is
			// recorded for the operator but never credited.
			if obs.Status == shared.ObservationStatusPaid && c.Status != shared.ContributionStatusPaid {
				latePayment = true
			}
			return nil
		}

		switch obs.Status {
		case shared.ObservationStatusPaid:
			paidAt = obs.ObservedAt
			if paidAt.IsZero() {
				paidAt = time.Now().UTC()
			}
			if err := contributions.MarkTerminal(ctx, c.ID, shared.ContributionStatusPaid, &paidAt, obs.Preimage); err != nil {
				return err
			}
			campaignCompleted, err := r.campaigns.WithTx(tx).Credit(ctx, c.CampaignID, c.Amount)
			if err != nil {
				return fmt.Errorf("failed to credit campaign %s for contribution %s: %w", c.CampaignID, c.ID, err)
			}
			completed = campaignCompleted
			applied = true

		case shared.ObservationStatusFailed:
			if err := contributions.MarkTerminal(ctx, c.ID, shared.ContributionStatusFailed, nil, ""); err != nil {
				return err
			}
			applied = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	switch {
	case latePayment:
		r.logger.Warn("Payment confirmed after contribution went terminal, not crediting",
			"contribution_id", contrib.ID,
			"reference", obs.Reference,
			"terminal_status", contrib.Status,
			"source", obs.Source,
		)
		r.recordAudit(ctx, obs, audit.EventTypeLatePayment,
			fmt.Sprintf("payment confirmed after terminal status %s", contrib.Status))

	case applied:
		r.logger.Info("Applied observation",
			"contribution_id", contrib.ID,
			"reference", obs.Reference,
			"status", obs.Status,
			"source", obs.Source,
			"campaign_completed", completed,
		)
		r.recordAudit(ctx, obs, audit.EventTypeObservation, "")
		if obs.Status == shared.ObservationStatusPaid {
			r.publishSettlement(ctx, contrib, completed, paidAt)
		}

	default:
		r.logger.Debug("Discarded duplicate observation",
			"contribution_id", contrib.ID,
			"reference", obs.Reference,
			"status", obs.Status,
			"source", obs.Source,
		)
	}
	return nil
}

// Cancel transitions a pending contribution to cancelled. Cancelling a
// contribution that has already settled, failed, or expired is rejected.
func (r *Reconciler) Cancel(ctx context.Context, id uuid.UUID) (*contribution.Contribution, error) {
	var contrib *contribution.Contribution

	err := r.txManager.ExecuteTx(ctx, func(tx pgx.Tx) error {
		contributions := r.contributions.WithTx(tx)

		c, err := contributions.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if c.Terminal() {
			return contribution.ErrAlreadyTerminal{ID: c.ID, Status: c.Status}
		}
		if err := contributions.MarkTerminal(ctx, c.ID, shared.ContributionStatusCancelled, nil, ""); err != nil {
			return err
		}
		c.Status = shared.ContributionStatusCancelled
		contrib = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Cancelled contribution", "contribution_id", id)
	return contrib, nil
}

// Expire transitions a pending contribution past its deadline to expired.
// Losing the race to a concurrent payment confirmation is not an error: the
// winning transition stands and the expiry is dropped.
func (r *Reconciler) Expire(ctx context.Context, id uuid.UUID) error {
	var expired bool

	err := r.txManager.ExecuteTx(ctx, func(tx pgx.Tx) error {
		contributions := r.contributions.WithTx(tx)

		c, err := contributions.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if c.Terminal() {
			return nil
		}
		if !c.Expired(time.Now().UTC()) {
			return nil
		}
		if err := contributions.MarkTerminal(ctx, c.ID, shared.ContributionStatusExpired, nil, ""); err != nil {
			if errors.Is(err, contribution.ErrAlreadyTerminal{}) {
				return nil
			}
			return err
		}
		expired = true
		return nil
	})
	if err != nil {
		return err
	}

	if expired {
		r.logger.Info("Expired contribution", "contribution_id", id)
	}
	return nil
}

// LedgerReport compares a campaign's recorded total against the sum of its
// paid contributions.
type LedgerReport struct {
	CampaignID     uuid.UUID `json:"campaign_id"`
	RecordedAmount int64     `json:"recorded_amount"`
	ComputedAmount int64     `json:"computed_amount"`
	Drift          int64     `json:"drift"`
	Consistent     bool      `json:"consistent"`
	Repaired       bool      `json:"repaired"`
}

// CheckLedger recomputes a campaign's total from its paid contributions and
// reports any drift without modifying anything.
func (r *Reconciler) CheckLedger(ctx context.Context, campaignID uuid.UUID) (*LedgerReport, error) {
	camp, err := r.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	sum, err := r.contributions.SumPaidByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	report := &LedgerReport{
		CampaignID:     campaignID,
		RecordedAmount: camp.CurrentAmount,
		ComputedAmount: sum,
		Drift:          camp.CurrentAmount - sum,
		Consistent:     camp.CurrentAmount == sum,
	}
	if !report.Consistent {
		r.logger.Warn("Campaign ledger drift detected",
			"campaign_id", campaignID,
			"recorded_amount", report.RecordedAmount,
			"computed_amount", report.ComputedAmount,
			"drift", report.Drift,
		)
	}
	return report, nil
}

// RepairLedger overwrites a campaign's recorded total with the sum recomputed
// from its paid contributions. This is an operator-triggered action; normal
// operation never needs it because credits ride in the settlement transaction.
func (r *Reconciler) RepairLedger(ctx context.Context, campaignID uuid.UUID) (*LedgerReport, error) {
	report, err := r.CheckLedger(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if report.Consistent {
		return report, nil
	}

	err = r.txManager.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return r.campaigns.WithTx(tx).SetCurrentAmount(ctx, campaignID, report.ComputedAmount)
	})
	if err != nil {
		return nil, err
	}
	report.Repaired = true

	r.logger.Warn("Repaired campaign ledger",
		"campaign_id", campaignID,
		"previous_amount", report.RecordedAmount,
		"repaired_amount", report.ComputedAmount,
	)

	event := audit.NewEvent(audit.EventTypeLedgerRepair, "")
	event.Note = fmt.Sprintf("campaign %s repaired from %d to %d", campaignID, report.RecordedAmount, report.ComputedAmount)
	if err := r.auditTrail.Record(ctx, event); err != nil {
		r.logger.Warn("Failed to record ledger repair audit event", "campaign_id", campaignID, "error", err)
	}
	return report, nil
}

// recordAudit writes an audit event after the transaction commits. Audit
// failures are logged, not surfaced: the contribution state is already
// durable and must not appear to fail.
func (r *Reconciler) recordAudit(ctx context.Context, obs shared.Observation, eventType audit.EventType, note string) {
	event := audit.NewEvent(eventType, obs.Reference)
	event.Source = obs.Source
	event.Status = string(obs.Status)
	event.CorrelationID = obs.CorrelationID
	event.Note = note
	if payload, err := json.Marshal(obs); err == nil {
		event.Payload = payload
	}
	if err := r.auditTrail.Record(ctx, event); err != nil {
		r.logger.Warn("Failed to record audit event",
			"reference", obs.Reference,
			"event_type", eventType,
			"error", err,
		)
	}
}

func (r *Reconciler) publishSettlement(ctx context.Context, contrib *contribution.Contribution, completed bool, paidAt time.Time) {
	if r.publisher == nil {
		return
	}
	msg := SettlementMessage{
		ContributionID:    contrib.ID,
		CampaignID:        contrib.CampaignID,
		Reference:         contrib.Reference,
		Amount:            contrib.Amount,
		CampaignCompleted: completed,
		PaidAt:            paidAt,
	}
	if err := r.publisher.Publish(ctx, contrib.ID.String(), msg); err != nil {
		r.logger.Warn("Failed to publish settlement message", "contribution_id", contrib.ID, "error", err)
	}
}
