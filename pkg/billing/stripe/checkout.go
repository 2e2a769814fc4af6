package stripe

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v83"

	"github.com/formatexp/formatexp/pkg/billing"
	"github.com/formatexp/formatexp/pkg/credits"
)

// CheckoutURL creates a Stripe Checkout Session for a subscription to
// the given plan and returns the hosted payment page URL.
//
// The account id and plan are stamped into session metadata so the
// checkout.session.completed webhook can resolve the account without an
// extra Stripe API call; the email association is the MVP fallback.
func (p *Provider) CheckoutURL(ctx context.Context, accountID, email string, plan credits.Plan, successURL, cancelURL string) (string, error) {
	priceID := p.priceForPlan(plan)
	if priceID == "" {
		p.metrics.RecordCheckout(providerName, "plan_not_configured")
		return "", fmt.Errorf("%w: no price configured for plan %q", billing.ErrProviderNotConfigured, string(plan))
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		CustomerEmail: stripe.String(email),
		SuccessURL:    stripe.String(successURL),
		CancelURL:     stripe.String(cancelURL),
		Metadata: map[string]string{
			"account_id": accountID,
			"plan":       string(plan),
		},
	}

	// Stamp the subscription too, so later subscription events carry the
	// account id even if the session metadata is long gone.
	params.SubscriptionData = &stripe.CheckoutSessionCreateSubscriptionDataParams{}
	params.SubscriptionData.AddMetadata("account_id", accountID)

	session, err := p.stripeClient.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		p.metrics.RecordCheckout(providerName, "error")
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	p.metrics.RecordCheckout(providerName, "success")
	return session.URL, nil
}
