package audit

import (
	"context"
	"time"
)

// Repository manages audit event persistence. Recording is best-effort from
// the caller's point of view: a failed audit write is logged, never allowed
// to fail a payment transition.
type Repository interface {
	Record(ctx context.Context, event *Event) error
	GetByReference(ctx context.Context, reference string, limit, offset int) ([]*Event, error)
	CountByReference(ctx context.Context, reference string) (int64, error)
	GetByTimeRange(ctx context.Context, startTime, endTime time.Time, limit, offset int) ([]*Event, error)
}
