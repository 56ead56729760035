package campaign

import (
	"context"

	"github.com/crowdpay-contribution-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines campaign persistence operations. Campaign authoring is
// owned by the CRUD layer; this side only reads campaigns and applies ledger
// credits.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Campaign, error)

	// Credit atomically adds amount to the running total and transitions an
	// active campaign to completed once the target is covered. The increment
	// is additive in SQL, never read-modify-write. Returns whether this
	// credit completed the campaign.
	Credit(ctx context.Context, id uuid.UUID, amount int64) (completed bool, err error)

	// SetCurrentAmount overwrites the running total. Only the operator
	// reconciliation pass uses this; regular settlement always goes
	// through Credit.
	SetCurrentAmount(ctx context.Context, id uuid.UUID, amount int64) error

	WithTx(tx pgx.Tx) Repository
}

// ErrNotFound indicates a missing campaign
type ErrNotFound struct {
	ID uuid.UUID
}

func (e ErrNotFound) Error() string {
	return "campaign not found: " + e.ID.String()
}

// Is matches any ErrNotFound when the target carries no identity
func (e ErrNotFound) Is(target error) bool {
	t, ok := target.(ErrNotFound)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil {
		return true
	}
	return e.ID == t.ID
}

// ErrNotActive indicates the campaign is not accepting contributions
type ErrNotActive struct {
	ID     uuid.UUID
	Status shared.CampaignStatus
}

func (e ErrNotActive) Error() string {
	return "campaign " + e.ID.String() + " is not active: " + string(e.Status)
}

// Is matches any ErrNotActive when the target carries no identity
func (e ErrNotActive) Is(target error) bool {
	t, ok := target.(ErrNotActive)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil {
		return true
	}
	return e.ID == t.ID
}
