package billing_test

import (
	"context"
	"testing"

	"github.com/formatexp/formatexp/pkg/billing"
	"github.com/formatexp/formatexp/pkg/credits"
	"github.com/formatexp/formatexp/storage/memory"
)

func setupHandler(t *testing.T) (*billing.Handler, *memory.Storage) {
	t.Helper()

	storage := memory.New()
	handler, err := billing.NewHandler(storage, nil, nil)
	if err != nil {
		t.Fatalf("Failed to create handler: %v", err)
	}
	return handler, storage
}

func seedAccount(t *testing.T, storage *memory.Storage, acc *credits.Account) {
	t.Helper()
	if err := storage.CreateAccount(context.Background(), acc); err != nil {
		t.Fatalf("Failed to seed account: %v", err)
	}
}

func TestHandle_SubscriptionActivated(t *testing.T) {
	handler, storage := setupHandler(t)
	ctx := context.Background()

	seedAccount(t, storage, &credits.Account{
		ID:          "a1",
		Email:       "buyer@example.com",
		Plan:        credits.PlanPersonal,
		CreditsUsed: 60,
	})

	err := handler.Handle(ctx, billing.Event{
		Kind:            billing.EventSubscriptionActivated,
		AccountID:       "a1",
		Plan:            credits.PlanPro,
		CustomerRef:     "cus_123",
		SubscriptionRef: "sub_123",
	})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	acc, _ := storage.GetAccount(ctx, "a1")
	if acc.Plan != credits.PlanPro {
		t.Errorf("Plan = %q, want pro", acc.Plan)
	}
	if acc.CreditsUsed != 0 {
		t.Errorf("CreditsUsed = %d, want 0 after activation", acc.CreditsUsed)
	}
	if acc.SubscriptionStatus != credits.SubscriptionActive {
		t.Errorf("SubscriptionStatus = %q, want active", acc.SubscriptionStatus)
	}
	if acc.BillingRef.CustomerID != "cus_123" || acc.BillingRef.SubscriptionID != "sub_123" {
		t.Errorf("BillingRef = %+v", acc.BillingRef)
	}
}

func TestHandle_ActivationResolvesByEmail(t *testing.T) {
	handler, storage := setupHandler(t)
	ctx := context.Background()

	seedAccount(t, storage, &credits.Account{
		ID:    "a1",
		Email: "fallback@example.com",
		Plan:  credits.PlanPersonal,
	})

	// No account id in metadata; email is the fallback association.
	err := handler.Handle(ctx, billing.Event{
		Kind:        billing.EventSubscriptionActivated,
		Email:       "fallback@example.com",
		Plan:        credits.PlanAcademia,
		CustomerRef: "cus_9",
	})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	acc, _ := storage.GetAccount(ctx, "a1")
	if acc.Plan != credits.PlanAcademia {
		t.Errorf("Plan = %q, want academia", acc.Plan)
	}
}

func TestHandle_ActivationUnknownPlanKeepsCurrent(t *testing.T) {
	handler, storage := setupHandler(t)
	ctx := context.Background()

	seedAccount(t, storage, &credits.Account{
		ID:    "a1",
		Email: "p@example.com",
		Plan:  credits.PlanPro,
	})

	err := handler.Handle(ctx, billing.Event{
		Kind:      billing.EventSubscriptionActivated,
		AccountID: "a1",
		Plan:      credits.Plan("platinum"),
	})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	acc, _ := storage.GetAccount(ctx, "a1")
	if acc.Plan != credits.PlanPro {
		t.Errorf("Plan = %q, unknown plan must not overwrite", acc.Plan)
	}
	if acc.SubscriptionStatus != credits.SubscriptionActive {
		t.Errorf("SubscriptionStatus = %q, want active", acc.SubscriptionStatus)
	}
}

func TestHandle_InvoicePaidResetsCredits(t *testing.T) {
	handler, storage := setupHandler(t)
	ctx := context.Background()

	seedAccount(t, storage, &credits.Account{
		ID:          "a1",
		Email:       "renew@example.com",
		Plan:        credits.PlanPro,
		CreditsUsed: 480,
		BillingRef:  credits.BillingRef{CustomerID: "cus_renew"},
	})

	err := handler.Handle(ctx, billing.Event{
		Kind:        billing.EventInvoicePaid,
		CustomerRef: "cus_renew",
	})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	acc, _ := storage.GetAccount(ctx, "a1")
	if acc.CreditsUsed != 0 {
		t.Errorf("CreditsUsed = %d, want 0 after renewal", acc.CreditsUsed)
	}
	if acc.Plan != credits.PlanPro {
		t.Errorf("Plan = %q, renewal must not change the plan", acc.Plan)
	}
}

func TestHandle_SubscriptionCanceled(t *testing.T) {
	handler, storage := setupHandler(t)
	ctx := context.Background()

	seedAccount(t, storage, &credits.Account{
		ID:          "a1",
		Email:       "cancel@example.com",
		Plan:        credits.PlanAcademia,
		CreditsUsed: 321,
		BillingRef:  credits.BillingRef{SubscriptionID: "sub_cancel"},
	})

	err := handler.Handle(ctx, billing.Event{
		Kind:            billing.EventSubscriptionCanceled,
		SubscriptionRef: "sub_cancel",
	})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	acc, _ := storage.GetAccount(ctx, "a1")
	if acc.Plan != credits.PlanPersonal {
		t.Errorf("Plan = %q, want personal after cancellation", acc.Plan)
	}
	if acc.SubscriptionStatus != credits.SubscriptionCanceled {
		t.Errorf("SubscriptionStatus = %q, want canceled", acc.SubscriptionStatus)
	}
	if acc.CreditsUsed != 321 {
		t.Errorf("CreditsUsed = %d, cancellation must not reset credits", acc.CreditsUsed)
	}
}

func TestHandle_UnresolvedEventAcknowledged(t *testing.T) {
	handler, _ := setupHandler(t)

	// Events that resolve to nobody are acked, never retried.
	err := handler.Handle(context.Background(), billing.Event{
		Kind:        billing.EventInvoicePaid,
		CustomerRef: "cus_ghost",
	})
	if err != nil {
		t.Fatalf("Unresolved event should be acknowledged, got %v", err)
	}
}

func TestHandle_UnknownKind(t *testing.T) {
	handler, _ := setupHandler(t)

	err := handler.Handle(context.Background(), billing.Event{Kind: "mystery"})
	if err == nil {
		t.Fatal("Expected error for unknown event kind")
	}
}
