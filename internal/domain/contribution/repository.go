package contribution

import (
	"context"
	"time"

	"github.com/crowdpay-contribution-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ListFilter narrows List and Count queries
type ListFilter struct {
	CampaignID *uuid.UUID
	Status     *shared.ContributionStatus
}

// Repository defines contribution persistence operations. It is the single
// source of truth for idempotency decisions: every terminal transition goes
// through MarkTerminal, which only succeeds while the row is still pending.
type Repository interface {
	Create(ctx context.Context, c *Contribution) error
	GetByID(ctx context.Context, id uuid.UUID) (*Contribution, error)
	GetByReference(ctx context.Context, reference string) (*Contribution, error)

	// LockByID and LockByReference acquire a row-level lock for the
	// read-check-transition sequence; both must run inside a transaction.
	LockByID(ctx context.Context, id uuid.UUID) (*Contribution, error)
	LockByReference(ctx context.Context, reference string) (*Contribution, error)

	// MarkTerminal performs the guarded pending -> terminal transition.
	// Returns ErrAlreadyTerminal if another writer reached a terminal
	// state first.
	MarkTerminal(ctx context.Context, id uuid.UUID, status shared.ContributionStatus, paidAt *time.Time, preimage string) error

	// ListPending returns pending contributions whose invoice has not yet
	// expired at the given instant; the polling set is re-derived from this
	// on every cycle.
	ListPending(ctx context.Context, now time.Time, limit int) ([]*Contribution, error)

	// ListExpiredPending returns pending contributions past their expiry
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*Contribution, error)

	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Contribution, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)

	// SumPaidByCampaign totals the amounts of paid contributions for a
	// campaign, used by the ledger consistency check.
	SumPaidByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrNotFound indicates a missing contribution
type ErrNotFound struct {
	ID        uuid.UUID
	Reference string
}

func (e ErrNotFound) Error() string {
	if e.Reference != "" {
		return "contribution not found for reference: " + e.Reference
	}
	return "contribution not found: " + e.ID.String()
}

// Is matches any ErrNotFound when the target carries no identity
func (e ErrNotFound) Is(target error) bool {
	t, ok := target.(ErrNotFound)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil && t.Reference == "" {
		return true
	}
	return e.ID == t.ID && e.Reference == t.Reference
}

// ErrAlreadyTerminal indicates a transition attempt on a contribution that has
// already reached a terminal state. Callers on the observation path treat it
// as a discarded duplicate, not a failure.
type ErrAlreadyTerminal struct {
	ID     uuid.UUID
	Status shared.ContributionStatus
}

func (e ErrAlreadyTerminal) Error() string {
	return "contribution " + e.ID.String() + " is already terminal: " + string(e.Status)
}

// Is matches any ErrAlreadyTerminal when the target carries no identity
func (e ErrAlreadyTerminal) Is(target error) bool {
	t, ok := target.(ErrAlreadyTerminal)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil {
		return true
	}
	return e.ID == t.ID
}

// ErrDuplicateReference indicates a unique-index violation on the provider reference
type ErrDuplicateReference struct {
	Reference string
}

func (e ErrDuplicateReference) Error() string {
	return "contribution with provider reference already exists: " + e.Reference
}
