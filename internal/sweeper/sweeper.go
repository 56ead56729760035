// Package sweeper expires pending contributions whose payment deadline has
// passed.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crowdpay-contribution-ledger/internal/config"
	"github.com/crowdpay-contribution-ledger/internal/domain/contribution"
)

// Expirer is the slice of the reconciler the sweeper needs
type Expirer interface {
	Expire(ctx context.Context, id uuid.UUID) error
}

// Sweeper periodically transitions overdue pending contributions to expired.
// Each expiry goes through the reconciler, which re-checks state under the
// row lock, so a payment confirmation racing the sweep always wins.
type Sweeper struct {
	contributions contribution.Repository
	expirer       Expirer
	interval      time.Duration
	batchSize     int
	logger        *slog.Logger
}

func NewSweeper(
	cfg *config.SweeperConfig,
	contributions contribution.Repository,
	expirer Expirer,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		contributions: contributions,
		expirer:       expirer,
		interval:      cfg.Interval,
		batchSize:     cfg.BatchSize,
		logger:        logger,
	}
}

// Run sweeps until ctx is cancelled. It blocks; run it in its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("Starting expiry sweeper", "interval", s.interval, "batch_size", s.batchSize)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping expiry sweeper")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	now := time.Now().UTC()
	overdue, err := s.contributions.ListExpiredPending(ctx, now, s.batchSize)
	if err != nil {
		s.logger.Error("Failed to list overdue contributions", "error", err)
		return
	}
	if len(overdue) == 0 {
		return
	}

	s.logger.Info("Sweeping overdue contributions", "count", len(overdue))

	for _, c := range overdue {
		if err := s.expirer.Expire(ctx, c.ID); err != nil {
			s.logger.Error("Failed to expire contribution",
				"contribution_id", c.ID,
				"reference", c.Reference,
				"error", err,
			)
		}
	}
}
