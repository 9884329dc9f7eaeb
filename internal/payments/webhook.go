package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wellhavenhq/telehealth-platform/internal/events"
	"github.com/wellhavenhq/telehealth-platform/internal/observability/metrics"
	"github.com/wellhavenhq/telehealth-platform/pkg/logging"
)

// creditGranter is the one ledger call the payment adapter depends on.
type creditGranter interface {
	Grant(ctx context.Context, patientID uuid.UUID, count int, packageRef string) ([]uuid.UUID, error)
}

// processedTracker dedupes webhook deliveries by provider event id.
type processedTracker interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// outboxWriter records domain events for asynchronous delivery.
type outboxWriter interface {
	Insert(ctx context.Context, eventType string, payload any) (uuid.UUID, error)
}

// StripeWebhookHandler reacts to checkout.session.completed by granting
// the purchased credits. Replayed deliveries are acknowledged without a
// second grant.
type StripeWebhookHandler struct {
	webhookSecret string
	ledger        creditGranter
	processed     processedTracker
	outbox        outboxWriter
	metrics       *metrics.BookingMetrics
	logger        *logging.Logger
	now           func() time.Time
}

// NewStripeWebhookHandler creates a new handler for Stripe webhooks.
func NewStripeWebhookHandler(
	webhookSecret string,
	ledger creditGranter,
	processed processedTracker,
	outbox outboxWriter,
	m *metrics.BookingMetrics,
	logger *logging.Logger,
) *StripeWebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeWebhookHandler{
		webhookSecret: webhookSecret,
		ledger:        ledger,
		processed:     processed,
		outbox:        outbox,
		metrics:       m,
		logger:        logger,
		now:           time.Now,
	}
}

// WithClock overrides the time source used for signature tolerance.
func (h *StripeWebhookHandler) WithClock(now func() time.Time) *StripeWebhookHandler {
	if now != nil {
		h.now = now
	}
	return h
}

// Handle processes incoming Stripe webhook events.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	started := h.now()
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if !verifyStripeSignature(h.webhookSecret, payload, sigHeader, h.now) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var evt stripeWebhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("failed to decode stripe event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if evt.ID == "" {
		http.Error(w, "missing event id", http.StatusBadRequest)
		return
	}

	// Only checkout.session.completed moves the ledger.
	if evt.Type != "checkout.session.completed" {
		w.WriteHeader(http.StatusOK)
		return
	}

	if processed, err := h.processed.AlreadyProcessed(r.Context(), events.StripeProvider, evt.ID); err != nil {
		h.logger.Error("processed lookup failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	} else if processed {
		w.WriteHeader(http.StatusOK)
		return
	}

	session := evt.Data.Object
	metadata := session.Metadata
	patientStr := metadata["patient_id"]
	packageID := metadata["package_id"]
	countStr := metadata["credits"]

	if patientStr == "" || packageID == "" || countStr == "" {
		h.logger.Warn("stripe webhook missing required metadata", "event_id", evt.ID, "metadata", metadata)
		// Acknowledge so Stripe stops retrying; nothing can be granted.
		w.WriteHeader(http.StatusOK)
		return
	}

	patientID, err := uuid.Parse(patientStr)
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}
	count, err := strconv.Atoi(countStr)
	if err != nil || count <= 0 {
		http.Error(w, "invalid credit count", http.StatusBadRequest)
		return
	}

	if _, err := h.ledger.Grant(r.Context(), patientID, count, packageID); err != nil {
		h.logger.Error("credit grant failed", "error", err, "event_id", evt.ID, "patient_id", patientID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	h.metrics.ObserveCreditsGranted(count)

	if h.outbox != nil {
		granted := events.CreditsGranted{
			PatientID:        patientID,
			Count:            count,
			PackageReference: packageID,
		}
		if _, err := h.outbox.Insert(r.Context(), events.TypeCreditsGranted, granted); err != nil {
			h.logger.Error("failed to enqueue outbox", "error", err, "event_id", evt.ID)
		}
	}

	if _, err := h.processed.MarkProcessed(r.Context(), events.StripeProvider, evt.ID); err != nil {
		h.logger.Error("failed to record processed event", "error", err)
	}

	h.metrics.ObserveWebhookLatency(evt.Type, h.now().Sub(started).Seconds())
	h.logger.Info("credits granted from checkout",
		"event_id", evt.ID, "patient_id", patientID, "package_id", packageID, "count", count)
	w.WriteHeader(http.StatusOK)
}

// stripeWebhookEvent represents a Stripe webhook event envelope.
type stripeWebhookEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object stripeSessionObject `json:"object"`
	} `json:"data"`
}

// stripeSessionObject is the checkout.session object from the webhook.
type stripeSessionObject struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
	Status        string            `json:"status"`
}

// verifyStripeSignature verifies a Stripe webhook signature.
// Stripe signs with HMAC-SHA256 and sends the signature in the
// Stripe-Signature header as: t=<timestamp>,v1=<signature>[,v0=...]
func verifyStripeSignature(secret string, payload []byte, header string, now func() time.Time) bool {
	if secret == "" {
		return true // bypass for development
	}
	if header == "" {
		return false
	}

	var timestamp string
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	// Reject stale deliveries (5 minute tolerance).
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if abs64(now().Unix()-ts) > 300 {
		return false
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return true
		}
	}
	return false
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
