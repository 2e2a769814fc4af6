package billing

import "errors"

var (
	// ErrProviderNotConfigured is returned when a provider is missing
	// required credentials or configuration.
	ErrProviderNotConfigured = errors.New("billing provider not configured")

	// ErrInvalidWebhookSignature is returned when webhook signature
	// validation fails.
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")

	// ErrInvalidWebhookPayload is returned when a webhook payload cannot
	// be parsed.
	ErrInvalidWebhookPayload = errors.New("invalid webhook payload")

	// ErrUnknownEventKind is returned for event kinds the handler does
	// not recognize.
	ErrUnknownEventKind = errors.New("unknown billing event kind")
)
