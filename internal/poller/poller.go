// Package poller periodically asks the payment provider for the state of
// every pending contribution and feeds terminal answers to the reconciler.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/crowdpay-contribution-ledger/internal/config"
	"github.com/crowdpay-contribution-ledger/internal/domain/contribution"
	"github.com/crowdpay-contribution-ledger/internal/domain/shared"
	"github.com/crowdpay-contribution-ledger/internal/provider"
)

// ObservationApplier consumes observations produced by polling
type ObservationApplier interface {
	Apply(ctx context.Context, obs shared.Observation) error
}

// StatusChecker is the slice of the provider the poller needs
type StatusChecker interface {
	GetStatus(ctx context.Context, reference string) (*provider.ChargeState, error)
}

// Poller re-derives the set of pending contributions from the store on every
// tick and checks each against the provider through a bounded worker pool.
// It keeps no in-memory polling set, so a restart loses nothing.
type Poller struct {
	contributions contribution.Repository
	checker       StatusChecker
	applier       ObservationApplier
	pool          *ants.Pool
	interval      time.Duration
	batchSize     int
	logger        *slog.Logger
}

func NewPoller(
	cfg *config.PollerConfig,
	contributions contribution.Repository,
	checker StatusChecker,
	applier ObservationApplier,
	logger *slog.Logger,
) (*Poller, error) {
	pool, err := ants.NewPool(cfg.WorkerPoolSize)
	if err != nil {
		return nil, err
	}

	return &Poller{
		contributions: contributions,
		checker:       checker,
		applier:       applier,
		pool:          pool,
		interval:      cfg.Interval,
		batchSize:     cfg.BatchSize,
		logger:        logger,
	}, nil
}

// Run polls until ctx is cancelled. It blocks; run it in its own goroutine.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("Starting contribution poller", "interval", p.interval, "batch_size", p.batchSize)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Stopping contribution poller")
			p.pool.Release()
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	now := time.Now().UTC()
	pending, err := p.contributions.ListPending(ctx, now, p.batchSize)
	if err != nil {
		p.logger.Error("Failed to list pending contributions", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	p.logger.Debug("Polling pending contributions", "count", len(pending))

	var wg sync.WaitGroup
	for _, c := range pending {
		c := c
		wg.Add(1)
		if err := p.pool.Submit(func() {
			defer wg.Done()
			p.check(ctx, c)
		}); err != nil {
			wg.Done()
			p.logger.Error("Failed to submit poll task to worker pool", "contribution_id", c.ID, "error", err)
		}
	}
	wg.Wait()
}

// check queries the provider for one contribution. Provider unavailability
// means "no information": the contribution stays pending and is retried on
// the next tick.
func (p *Poller) check(ctx context.Context, c *contribution.Contribution) {
	state, err := p.checker.GetStatus(ctx, c.Reference)
	if err != nil {
		if errors.Is(err, provider.ErrUnavailable) {
			p.logger.Warn("Provider unavailable during poll, will retry",
				"contribution_id", c.ID,
				"reference", c.Reference,
				"error", err,
			)
			return
		}
		p.logger.Error("Failed to check contribution status",
			"contribution_id", c.ID,
			"reference", c.Reference,
			"error", err,
		)
		return
	}

	var status shared.ObservationStatus
	switch state.Status {
	case provider.ChargeStatusPaid:
		status = shared.ObservationStatusPaid
	case provider.ChargeStatusFailed:
		status = shared.ObservationStatusFailed
	default:
		// Still pending or no information; nothing to apply.
		return
	}

	obs := shared.Observation{
		Reference:  c.Reference,
		Status:     status,
		Preimage:   state.Preimage,
		Source:     shared.ObservationSourcePoll,
		ObservedAt: time.Now().UTC(),
	}
	if err := p.applier.Apply(ctx, obs); err != nil {
		p.logger.Error("Failed to apply poll observation",
			"contribution_id", c.ID,
			"reference", c.Reference,
			"status", status,
			"error", err,
		)
	}
}
