package billing

import (
	"context"
	"fmt"

	"github.com/formatexp/formatexp/pkg/credits"
)

// Handler applies normalized billing events to the account store.
//
// Events whose account cannot be resolved are logged and acknowledged as
// handled rather than failed: failing would make the provider re-deliver
// an event that will never resolve, so truly orphaned events are an
// accepted data-loss risk.
type Handler struct {
	accounts credits.AccountStore
	logger   credits.Logger
	metrics  credits.Metrics
}

// NewHandler creates a billing event handler.
func NewHandler(accounts credits.AccountStore, logger credits.Logger, metrics credits.Metrics) (*Handler, error) {
	if accounts == nil {
		return nil, fmt.Errorf("account store is required")
	}
	if logger == nil {
		logger = &credits.NoopLogger{}
	}
	if metrics == nil {
		metrics = &credits.NoopMetrics{}
	}
	return &Handler{accounts: accounts, logger: logger, metrics: metrics}, nil
}

// Handle applies one event. A nil return means the event is acknowledged,
// including the resolved-to-nobody case.
func (h *Handler) Handle(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventSubscriptionActivated:
		return h.handleActivated(ctx, ev)
	case EventInvoicePaid:
		return h.handleInvoicePaid(ctx, ev)
	case EventSubscriptionCanceled:
		return h.handleCanceled(ctx, ev)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventKind, string(ev.Kind))
	}
}

// handleActivated processes the first successful payment: set the plan,
// zero the counter, mark the subscription active and record the billing
// references for later event resolution.
func (h *Handler) handleActivated(ctx context.Context, ev Event) error {
	acc, err := h.resolveForActivation(ctx, ev)
	if err != nil {
		if err == credits.ErrAccountNotFound {
			h.ackUnresolved(ev)
			return nil
		}
		return err
	}

	if ev.Plan.Valid() {
		acc.Plan = ev.Plan
	} else if ev.Plan != "" {
		h.logger.Warn("billing event carried unknown plan, keeping current",
			credits.Field{Key: "account_id", Value: acc.ID},
			credits.Field{Key: "plan", Value: string(ev.Plan)},
		)
	}
	acc.CreditsUsed = 0
	acc.SubscriptionStatus = credits.SubscriptionActive
	if ev.CustomerRef != "" {
		acc.BillingRef.CustomerID = ev.CustomerRef
	}
	if ev.SubscriptionRef != "" {
		acc.BillingRef.SubscriptionID = ev.SubscriptionRef
	}

	if err := h.accounts.SaveAccount(ctx, acc); err != nil {
		return fmt.Errorf("failed to save activated account: %w", err)
	}

	h.metrics.RecordCreditsReset("billing_event", 1)
	h.logger.Info("subscription activated",
		credits.Field{Key: "account_id", Value: acc.ID},
		credits.Field{Key: "plan", Value: string(acc.Plan)},
	)
	return nil
}

// handleInvoicePaid processes a recurring renewal charge: zero the
// counter and mark the subscription active.
func (h *Handler) handleInvoicePaid(ctx context.Context, ev Event) error {
	acc, err := h.accounts.GetAccountByBillingRef(ctx, credits.BillingRef{
		CustomerID:     ev.CustomerRef,
		SubscriptionID: ev.SubscriptionRef,
	})
	if err != nil {
		if err == credits.ErrAccountNotFound {
			h.ackUnresolved(ev)
			return nil
		}
		return err
	}

	acc.CreditsUsed = 0
	acc.SubscriptionStatus = credits.SubscriptionActive
	if err := h.accounts.SaveAccount(ctx, acc); err != nil {
		return fmt.Errorf("failed to save renewed account: %w", err)
	}

	h.metrics.RecordCreditsReset("billing_event", 1)
	h.logger.Info("credits reset on renewal",
		credits.Field{Key: "account_id", Value: acc.ID},
	)
	return nil
}

// handleCanceled downgrades the account to personal. Credits are not
// reset on cancellation.
func (h *Handler) handleCanceled(ctx context.Context, ev Event) error {
	acc, err := h.accounts.GetAccountByBillingRef(ctx, credits.BillingRef{
		CustomerID:     ev.CustomerRef,
		SubscriptionID: ev.SubscriptionRef,
	})
	if err != nil {
		if err == credits.ErrAccountNotFound {
			h.ackUnresolved(ev)
			return nil
		}
		return err
	}

	acc.Plan = credits.PlanPersonal
	acc.SubscriptionStatus = credits.SubscriptionCanceled
	if err := h.accounts.SaveAccount(ctx, acc); err != nil {
		return fmt.Errorf("failed to save canceled account: %w", err)
	}

	h.logger.Info("subscription canceled",
		credits.Field{Key: "account_id", Value: acc.ID},
	)
	return nil
}

// resolveForActivation prefers the internal account id carried in
// checkout metadata and falls back to the billing email.
func (h *Handler) resolveForActivation(ctx context.Context, ev Event) (*credits.Account, error) {
	if ev.AccountID != "" {
		acc, err := h.accounts.GetAccount(ctx, ev.AccountID)
		if err == nil {
			return acc, nil
		}
		if err != credits.ErrAccountNotFound {
			return nil, err
		}
	}
	if ev.Email != "" {
		return h.accounts.GetAccountByEmail(ctx, ev.Email)
	}
	return nil, credits.ErrAccountNotFound
}

func (h *Handler) ackUnresolved(ev Event) {
	h.logger.Warn("billing event did not resolve to an account",
		credits.Field{Key: "kind", Value: string(ev.Kind)},
		credits.Field{Key: "customer_ref", Value: ev.CustomerRef},
		credits.Field{Key: "subscription_ref", Value: ev.SubscriptionRef},
	)
}
