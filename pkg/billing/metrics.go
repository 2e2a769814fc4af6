package billing

import "time"

// Metrics defines the interface for tracking billing provider operations.
type Metrics interface {
	// RecordWebhookEvent records a processed webhook event and its status
	// ("success", "error", "ignored").
	RecordWebhookEvent(provider, eventType, status string)

	// RecordWebhookError records a webhook failure by category
	// ("auth_failed", "invalid_payload", "payload_too_large",
	// "processing_error").
	RecordWebhookError(provider, category string)

	// RecordWebhookProcessingDuration records end-to-end webhook latency.
	RecordWebhookProcessingDuration(provider, eventType string, duration time.Duration)

	// RecordCheckout records a checkout session creation attempt.
	RecordCheckout(provider, status string)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordWebhookEvent(provider, eventType, status string)                       {}
func (n *NoopMetrics) RecordWebhookError(provider, category string)                               {}
func (n *NoopMetrics) RecordWebhookProcessingDuration(provider, eventType string, d time.Duration) {}
func (n *NoopMetrics) RecordCheckout(provider, status string)                                      {}
