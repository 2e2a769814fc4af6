// Package api exposes the HTTP surface: registration and login,
// generation, materials history, waitlist capture, checkout and the
// billing webhook mount.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/formatexp/formatexp/pkg/auth"
	"github.com/formatexp/formatexp/pkg/credits"
	"github.com/formatexp/formatexp/pkg/waitlist"
)

// CheckoutProvider creates hosted payment pages for plan purchases.
// Implemented by the Stripe billing provider.
type CheckoutProvider interface {
	CheckoutURL(ctx context.Context, accountID, email string, plan credits.Plan, successURL, cancelURL string) (string, error)
}

// Config holds server configuration.
type Config struct {
	// Accounts is the account store (required).
	Accounts credits.AccountStore

	// Materials is the generation history store (required).
	Materials credits.MaterialStore

	// Gate runs generation attempts (required).
	Gate *credits.Gate

	// Tokens signs and verifies session tokens (required).
	Tokens *auth.TokenSigner

	// Waitlist captures landing-page signups. Optional; the waitlist
	// endpoint returns 503 when nil.
	Waitlist waitlist.Store

	// Checkout creates payment sessions. Optional; the checkout endpoint
	// returns 503 when nil.
	Checkout CheckoutProvider

	// WebhookHandler is mounted at /api/billing/webhook. Optional.
	WebhookHandler http.Handler

	// CheckoutSuccessURL and CheckoutCancelURL are where Stripe sends the
	// browser after checkout. Required when Checkout is set.
	CheckoutSuccessURL string
	CheckoutCancelURL  string

	// Redis backs the per-account generation rate limit. Optional; when
	// nil generation is not rate limited.
	Redis *redis.Client

	// GenerateRateLimit is the number of generation requests allowed per
	// account per minute when Redis is set (default: 10).
	GenerateRateLimit int

	// Logger is used for structured logging (default: NoopLogger).
	Logger credits.Logger
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Accounts == nil {
		return fmt.Errorf("account store is required")
	}
	if c.Materials == nil {
		return fmt.Errorf("material store is required")
	}
	if c.Gate == nil {
		return fmt.Errorf("generation gate is required")
	}
	if c.Tokens == nil {
		return fmt.Errorf("token signer is required")
	}
	if c.Checkout != nil && (c.CheckoutSuccessURL == "" || c.CheckoutCancelURL == "") {
		return fmt.Errorf("checkout success and cancel URLs are required")
	}
	return nil
}
