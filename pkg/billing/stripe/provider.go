// Package stripe adapts Stripe subscription webhooks and checkout to
// the billing event model.
package stripe

import (
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/formatexp/formatexp/pkg/billing"
	"github.com/formatexp/formatexp/pkg/billing/internal"
	"github.com/formatexp/formatexp/pkg/credits"
)

const (
	providerName             = "stripe"
	defaultRateLimitWindow   = time.Minute
	defaultRateLimitRequests = 100
	maxWebhookBodyBytes      = 256 * 1024
)

// Config holds Stripe provider configuration.
type Config struct {
	// Handler applies normalized billing events (required).
	Handler *billing.Handler

	// APIKey is the Stripe secret key, used for checkout session
	// creation (required).
	APIKey string

	// WebhookSecret verifies incoming webhook signatures (required for
	// the webhook handler).
	WebhookSecret string

	// PlanPrices maps each purchasable plan to its Stripe price id.
	PlanPrices map[credits.Plan]string

	// Logger is used for structured logging (default: NoopLogger).
	Logger credits.Logger

	// Metrics tracks webhook and checkout operations (default: noop).
	Metrics billing.Metrics
}

// Provider verifies and translates Stripe webhooks, and creates checkout
// sessions for plan purchases.
type Provider struct {
	handler       *billing.Handler
	stripeClient  *stripe.Client
	webhookSecret []byte
	planPrices    map[credits.Plan]string
	rateLimiter   *internal.RateLimiter
	logger        credits.Logger
	metrics       billing.Metrics
}

// NewProvider creates a new Stripe billing provider.
func NewProvider(config Config) (*Provider, error) {
	if config.Handler == nil {
		return nil, billing.ErrProviderNotConfigured
	}
	apiKey := strings.TrimSpace(config.APIKey)
	if apiKey == "" {
		return nil, billing.ErrProviderNotConfigured
	}
	if config.Logger == nil {
		config.Logger = &credits.NoopLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &billing.NoopMetrics{}
	}

	return &Provider{
		handler:       config.Handler,
		stripeClient:  stripe.NewClient(apiKey),
		webhookSecret: []byte(strings.TrimSpace(config.WebhookSecret)),
		planPrices:    config.PlanPrices,
		rateLimiter:   internal.NewRateLimiter(defaultRateLimitRequests, defaultRateLimitWindow),
		logger:        config.Logger,
		metrics:       config.Metrics,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// WebhookHandler returns the HTTP handler that processes Stripe events,
// wrapped with per-IP rate limiting.
func (p *Provider) WebhookHandler() http.Handler {
	return p.rateLimiter.Middleware(http.HandlerFunc(p.handleWebhook))
}

// priceForPlan resolves a plan to its configured Stripe price id.
func (p *Provider) priceForPlan(plan credits.Plan) string {
	return p.planPrices[plan]
}
