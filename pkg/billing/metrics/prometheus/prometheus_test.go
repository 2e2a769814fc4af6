package prommetrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/formatexp/formatexp/pkg/billing"
)

func gatherFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}

	// Must satisfy the billing interface.
	var _ billing.Metrics = metrics
}

func TestRecordWebhookEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordWebhookEvent("stripe", "invoice.paid", "success")
	metrics.RecordWebhookEvent("stripe", "invoice.paid", "success")
	metrics.RecordWebhookEvent("stripe", "customer.updated", "ignored")

	family := gatherFamily(t, reg, "test_billing_webhook_events_total")
	if family == nil {
		t.Fatal("webhook_events_total not registered")
	}
	if len(family.GetMetric()) != 2 {
		t.Errorf("Expected 2 label combinations, got %d", len(family.GetMetric()))
	}

	var successCount float64
	for _, m := range family.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "status" && l.GetValue() == "success" {
				successCount = m.GetCounter().GetValue()
			}
		}
	}
	if successCount != 2 {
		t.Errorf("success counter = %v, want 2", successCount)
	}
}

func TestRecordWebhookError(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordWebhookError("stripe", "auth_failed")

	family := gatherFamily(t, reg, "test_billing_webhook_errors_total")
	if family == nil {
		t.Fatal("webhook_errors_total not registered")
	}
	if got := family.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("error counter = %v, want 1", got)
	}
}

func TestRecordWebhookProcessingDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordWebhookProcessingDuration("stripe", "invoice.paid", 50*time.Millisecond)

	family := gatherFamily(t, reg, "test_billing_webhook_processing_duration_seconds")
	if family == nil {
		t.Fatal("webhook_processing_duration_seconds not registered")
	}
	if got := family.GetMetric()[0].GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("histogram sample count = %d, want 1", got)
	}
}

func TestRecordCheckout(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordCheckout("stripe", "success")
	metrics.RecordCheckout("stripe", "error")

	family := gatherFamily(t, reg, "test_billing_checkouts_total")
	if family == nil {
		t.Fatal("checkouts_total not registered")
	}
	if len(family.GetMetric()) != 2 {
		t.Errorf("Expected success and error series, got %d", len(family.GetMetric()))
	}
}
