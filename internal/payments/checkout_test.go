package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/wellhavenhq/telehealth-platform/internal/credits"
	"github.com/wellhavenhq/telehealth-platform/pkg/logging"
)

func starterPackage() *credits.Package {
	return &credits.Package{ID: "starter-3", Name: "Starter", Credits: 3, AmountCents: 14900, Active: true}
}

func TestCreatePackageCheckout(t *testing.T) {
	var gotForm map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk_test_123" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotForm = r.PostForm
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":  "cs_test_abc",
			"url": "https://checkout.stripe.com/pay/cs_test_abc",
		})
	}))
	defer server.Close()

	svc := NewStripeCheckoutService("sk_test_123", "https://app.wellhaven.test/success", "https://app.wellhaven.test/cancel", logging.Default()).
		WithBaseURL(server.URL)

	patientID := uuid.New()
	resp, err := svc.CreatePackageCheckout(context.Background(), patientID, starterPackage())
	if err != nil {
		t.Fatalf("CreatePackageCheckout: %v", err)
	}
	if resp.ProviderID != "cs_test_abc" {
		t.Fatalf("unexpected provider id %q", resp.ProviderID)
	}
	if !strings.Contains(resp.URL, "cs_test_abc") {
		t.Fatalf("unexpected url %q", resp.URL)
	}

	checks := map[string]string{
		"mode":                 "payment",
		"metadata[patient_id]": patientID.String(),
		"metadata[package_id]": "starter-3",
		"metadata[credits]":    "3",
		"line_items[0][price_data][unit_amount]": "14900",
	}
	for key, want := range checks {
		if got := gotForm[key]; len(got) != 1 || got[0] != want {
			t.Errorf("form %s = %v, want %q", key, got, want)
		}
	}
}

func TestCreatePackageCheckoutAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"card declined"}}`))
	}))
	defer server.Close()

	svc := NewStripeCheckoutService("sk_test_123", "", "", logging.Default()).WithBaseURL(server.URL)
	_, err := svc.CreatePackageCheckout(context.Background(), uuid.New(), starterPackage())
	if err == nil || !strings.Contains(err.Error(), "status 402") {
		t.Fatalf("expected api status error, got %v", err)
	}
}

func TestCreatePackageCheckoutDryRun(t *testing.T) {
	svc := NewStripeCheckoutService("", "", "", logging.Default()).WithDryRun(true)
	resp, err := svc.CreatePackageCheckout(context.Background(), uuid.New(), starterPackage())
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !strings.HasPrefix(resp.ProviderID, "cs_dryrun_") {
		t.Fatalf("unexpected provider id %q", resp.ProviderID)
	}
}
