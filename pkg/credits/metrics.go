package credits

import "time"

// Metrics defines the interface for tracking generation and credit
// operations.
type Metrics interface {
	// RecordGeneration records a generation attempt and its outcome
	// ("success", "invalid", "insufficient_credits", "provider_error",
	// "storage_error").
	RecordGeneration(materialType string, plan string, cost int, outcome string)

	// RecordProviderCall records the duration and status of a content
	// provider invocation.
	RecordProviderCall(duration time.Duration, err error)

	// RecordCreditsReset records a credit reset and its trigger
	// ("billing_event", "scheduled").
	RecordCreditsReset(trigger string, accounts int)

	// RecordStorageOperation records the duration and status of a storage
	// operation.
	RecordStorageOperation(operation string, duration time.Duration, err error)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordGeneration(materialType, plan string, cost int, outcome string)      {}
func (n *NoopMetrics) RecordProviderCall(duration time.Duration, err error)                     {}
func (n *NoopMetrics) RecordCreditsReset(trigger string, accounts int)                          {}
func (n *NoopMetrics) RecordStorageOperation(operation string, duration time.Duration, err error) {}
