package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/formatexp/formatexp/pkg/billing"
	"github.com/formatexp/formatexp/pkg/billing/internal"
	"github.com/formatexp/formatexp/pkg/credits"
)

// handleWebhook processes incoming Stripe webhook events.
func (p *Provider) handleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	setSecurityHeaders(w)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if len(p.webhookSecret) == 0 {
		http.Error(w, "webhook not configured", http.StatusServiceUnavailable)
		return
	}

	body, err := internal.ReadBodyStrict(w, r, maxWebhookBodyBytes)
	if err != nil {
		if errors.Is(err, internal.ErrPayloadTooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			p.metrics.RecordWebhookError(providerName, "payload_too_large")
		} else {
			http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
			p.metrics.RecordWebhookError(providerName, "invalid_payload")
		}
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	event, err := stripe.ConstructEvent(body, sig, string(p.webhookSecret))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		p.metrics.RecordWebhookError(providerName, "auth_failed")
		return
	}

	eventType := string(event.Type)
	if eventType == "" {
		eventType = "UNKNOWN"
	}

	if err := p.processWebhookEvent(r.Context(), &event); err != nil {
		http.Error(w, "failed to process webhook", http.StatusInternalServerError)
		p.metrics.RecordWebhookEvent(providerName, eventType, "error")
		p.metrics.RecordWebhookError(providerName, "processing_error")
		p.metrics.RecordWebhookProcessingDuration(providerName, eventType, time.Since(startTime))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))

	p.metrics.RecordWebhookEvent(providerName, eventType, "success")
	p.metrics.RecordWebhookProcessingDuration(providerName, eventType, time.Since(startTime))
}

// processWebhookEvent maps a Stripe event to a billing event and applies
// it. Unknown event types are ignored silently so the webhook endpoint
// can subscribe broadly without breaking on new Stripe features.
func (p *Provider) processWebhookEvent(ctx context.Context, event *stripe.Event) error {
	occurredAt := time.Unix(event.Created, 0)

	switch event.Type {
	case "checkout.session.completed":
		return p.handleCheckoutSessionCompleted(ctx, event, occurredAt)
	case "invoice.paid", "invoice.payment_succeeded":
		return p.handleInvoicePaid(ctx, event, occurredAt)
	case "customer.subscription.deleted":
		return p.handleSubscriptionDeleted(ctx, event, occurredAt)
	default:
		return nil
	}
}

// handleCheckoutSessionCompleted processes the first successful payment.
// The checkout flow stamps account_id and plan into session metadata;
// the billing email is the fallback when metadata is missing.
func (p *Provider) handleCheckoutSessionCompleted(ctx context.Context, event *stripe.Event, occurredAt time.Time) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	ev := billing.Event{
		Kind:       billing.EventSubscriptionActivated,
		OccurredAt: occurredAt,
	}
	if session.Metadata != nil {
		ev.AccountID = session.Metadata["account_id"]
		ev.Plan = credits.Plan(session.Metadata["plan"])
	}
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		ev.Email = session.CustomerDetails.Email
	} else {
		ev.Email = session.CustomerEmail
	}
	if session.Customer != nil {
		ev.CustomerRef = session.Customer.ID
	}
	if session.Subscription != nil {
		ev.SubscriptionRef = session.Subscription.ID
	}

	return p.handler.Handle(ctx, ev)
}

// handleInvoicePaid processes a recurring renewal charge. The customer
// and subscription references are read from the raw payload because the
// Invoice struct does not expose the subscription field directly.
func (p *Provider) handleInvoicePaid(ctx context.Context, event *stripe.Event, occurredAt time.Time) error {
	customerRef := extractRef(event.Data.Raw, "customer")
	subscriptionRef := extractRef(event.Data.Raw, "subscription")
	if customerRef == "" && subscriptionRef == "" {
		// Not a subscription invoice.
		return nil
	}

	return p.handler.Handle(ctx, billing.Event{
		Kind:            billing.EventInvoicePaid,
		CustomerRef:     customerRef,
		SubscriptionRef: subscriptionRef,
		OccurredAt:      occurredAt,
	})
}

// handleSubscriptionDeleted processes a cancellation.
func (p *Provider) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event, occurredAt time.Time) error {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	ev := billing.Event{
		Kind:            billing.EventSubscriptionCanceled,
		SubscriptionRef: subscription.ID,
		OccurredAt:      occurredAt,
	}
	if subscription.Customer != nil {
		ev.CustomerRef = subscription.Customer.ID
	}

	return p.handler.Handle(ctx, ev)
}

// extractRef pulls an expandable reference out of raw event JSON. The
// field arrives either as an id string or as an embedded object.
func extractRef(raw json.RawMessage, field string) string {
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return ""
	}
	switch v := data[field].(type) {
	case string:
		return v
	case map[string]interface{}:
		if id, ok := v["id"].(string); ok {
			return id
		}
	}
	return ""
}

func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
