package audit

import (
	"encoding/json"
	"time"

	"github.com/crowdpay-contribution-ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// EventType categorizes audit trail entries
type EventType string

const (
	// EventTypeObservation records a status observation that produced a
	// terminal transition or was discarded against a terminal contribution.
	EventTypeObservation EventType = "observation"

	// EventTypeWebhookRejected records an inbound webhook that failed
	// signature verification.
	EventTypeWebhookRejected EventType = "webhook_rejected"

	// EventTypeLatePayment records a paid observation for an already
	// expired contribution. The payment is never credited; the entry
	// exists for manual reconciliation.
	EventTypeLatePayment EventType = "late_payment"

	// EventTypeLedgerRepair records an operator-triggered repair of a
	// campaign's running total.
	EventTypeLedgerRepair EventType = "ledger_repair"
)

// Event is one entry in the payment audit trail. Entries are append-only and
// retained independently of contribution lifecycle.
type Event struct {
	ID            uuid.UUID                `json:"id" bson:"id"`
	Type          EventType                `json:"type" bson:"type"`
	Reference     string                   `json:"reference,omitempty" bson:"reference,omitempty"`
	Source        shared.ObservationSource `json:"source,omitempty" bson:"source,omitempty"`
	Status        string                   `json:"status,omitempty" bson:"status,omitempty"`
	Provider      string                   `json:"provider,omitempty" bson:"provider,omitempty"`
	CorrelationID string                   `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	Payload       json.RawMessage          `json:"payload,omitempty" bson:"payload,omitempty"`
	Note          string                   `json:"note,omitempty" bson:"note,omitempty"`
	CreatedAt     time.Time                `json:"created_at" bson:"created_at"`
}

// NewEvent creates an audit event stamped with the current time
func NewEvent(eventType EventType, reference string) *Event {
	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Reference: reference,
		CreatedAt: time.Now().UTC(),
	}
}
