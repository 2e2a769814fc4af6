// Package billing reacts to subscription lifecycle events by changing
// account plans and resetting credit counters. Events arrive from a
// provider-specific webhook adapter (see the stripe subpackage) that has
// already verified their signatures.
package billing

import (
	"time"

	"github.com/formatexp/formatexp/pkg/credits"
)

// EventKind identifies a subscription lifecycle event.
type EventKind string

const (
	// EventSubscriptionActivated fires on the first successful payment of
	// a new subscription.
	EventSubscriptionActivated EventKind = "subscription_activated"

	// EventInvoicePaid fires on every successful recurring charge. This
	// is the primary monthly credit reset path: credits reset when the
	// user actually pays, not on a calendar date.
	EventInvoicePaid EventKind = "invoice_paid"

	// EventSubscriptionCanceled fires when a subscription ends.
	EventSubscriptionCanceled EventKind = "subscription_canceled"
)

// Event is a normalized subscription lifecycle event.
type Event struct {
	Kind EventKind

	// AccountID is the internal account id, when the provider carried it
	// in metadata. May be empty; resolution then falls back to Email or
	// the billing references.
	AccountID string

	// Email is the billing email, used as an activation fallback lookup.
	Email string

	// Plan is the target plan for activation events. Ignored unless it is
	// one of the three valid plans.
	Plan credits.Plan

	// CustomerRef and SubscriptionRef are the provider's identifiers.
	CustomerRef     string
	SubscriptionRef string

	// OccurredAt is the provider's event timestamp.
	OccurredAt time.Time
}
