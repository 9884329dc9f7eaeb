package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wellhavenhq/telehealth-platform/internal/credits"
	"github.com/wellhavenhq/telehealth-platform/pkg/logging"
)

var stripeTracer = otel.Tracer("wellhaven.internal.payments")

// CheckoutResponse points the patient at the hosted payment page.
type CheckoutResponse struct {
	URL        string `json:"url"`
	ProviderID string `json:"provider_id"`
}

// StripeCheckoutService creates Stripe Checkout Sessions for credit
// package purchases. The engine never sees card data; it only reacts
// to the completion webhook.
type StripeCheckoutService struct {
	secretKey  string
	successURL string
	cancelURL  string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *logging.Logger
	dryRun     bool
}

// NewStripeCheckoutService creates a new Stripe checkout service.
func NewStripeCheckoutService(secretKey, successURL, cancelURL string, logger *logging.Logger) *StripeCheckoutService {
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeCheckoutService{
		secretKey:  secretKey,
		successURL: successURL,
		cancelURL:  cancelURL,
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-12-18.acacia",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the Stripe API base URL (for testing).
func (s *StripeCheckoutService) WithBaseURL(baseURL string) *StripeCheckoutService {
	if baseURL != "" {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
	return s
}

// WithDryRun enables dry-run mode (returns fake URLs without calling Stripe).
func (s *StripeCheckoutService) WithDryRun(enabled bool) *StripeCheckoutService {
	s.dryRun = enabled
	return s
}

// CreatePackageCheckout opens a checkout session for one credit package.
func (s *StripeCheckoutService) CreatePackageCheckout(ctx context.Context, patientID uuid.UUID, pkg *credits.Package) (*CheckoutResponse, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.create_checkout_session")
	defer span.End()
	span.SetAttributes(
		attribute.String("patient_id", patientID.String()),
		attribute.String("package_id", pkg.ID),
		attribute.Int("amount_cents", pkg.AmountCents),
	)

	if s.dryRun {
		fakeID := "cs_dryrun_" + uuid.New().String()[:8]
		s.logger.Info("stripe dry run: skipping checkout session creation",
			"patient_id", patientID, "package_id", pkg.ID, "amount_cents", pkg.AmountCents)
		return &CheckoutResponse{
			URL:        fmt.Sprintf("https://checkout.stripe.com/dry-run/%s", fakeID),
			ProviderID: fakeID,
		}, nil
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][price_data][currency]", "usd")
	form.Set("line_items[0][price_data][unit_amount]", strconv.Itoa(pkg.AmountCents))
	form.Set("line_items[0][price_data][product_data][name]", pkg.Name)
	form.Set("line_items[0][quantity]", "1")

	if s.successURL != "" {
		form.Set("success_url", s.successURL)
	}
	if s.cancelURL != "" {
		form.Set("cancel_url", s.cancelURL)
	}

	// Metadata drives the webhook's credit grant.
	form.Set("metadata[patient_id]", patientID.String())
	form.Set("metadata[package_id]", pkg.ID)
	form.Set("metadata[credits]", strconv.Itoa(pkg.Credits))

	apiURL := s.baseURL + "/v1/checkout/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("payments: stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Stripe-Version", s.apiVersion)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payments: stripe http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("payments: stripe api status %d: %s", resp.StatusCode, string(body))
	}

	var parsed stripeCheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("payments: stripe decode: %w", err)
	}
	if parsed.URL == "" {
		return nil, fmt.Errorf("payments: stripe response missing checkout url")
	}

	return &CheckoutResponse{
		URL:        parsed.URL,
		ProviderID: parsed.ID,
	}, nil
}

// stripeCheckoutSession is the subset of Stripe's Checkout Session we need.
type stripeCheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
