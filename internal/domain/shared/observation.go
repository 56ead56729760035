package shared

import "time"

// ObservationStatus is a charge status report from the payment provider,
// regardless of which path produced it.
type ObservationStatus string

const (
	ObservationStatusUnknown ObservationStatus = "unknown"
	ObservationStatusPending ObservationStatus = "pending"
	ObservationStatusPaid    ObservationStatus = "paid"
	ObservationStatusFailed  ObservationStatus = "failed"
)

// ObservationSource identifies the ingestion path that produced an observation
type ObservationSource string

const (
	ObservationSourcePoll    ObservationSource = "poll"
	ObservationSourceWebhook ObservationSource = "webhook"
	ObservationSourceSweep   ObservationSource = "sweep"
)

// Observation is a single status report about a charge, keyed by the
// provider's reference. The reconciler is the only consumer.
type Observation struct {
	Reference     string            `json:"reference"`
	Status        ObservationStatus `json:"status"`
	Preimage      string            `json:"preimage,omitempty"`
	Source        ObservationSource `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	ObservedAt    time.Time         `json:"observed_at"`
}
