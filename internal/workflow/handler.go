package workflow

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/wellhavenhq/telehealth-platform/internal/availability"
	"github.com/wellhavenhq/telehealth-platform/pkg/logging"
)

// Handler exposes the booking attempt endpoint.
type Handler struct {
	workflow *Workflow
	logger   *logging.Logger
}

// NewHandler creates a workflow handler.
func NewHandler(workflow *Workflow, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{workflow: workflow, logger: logger}
}

// AttemptRequest is the body for POST /bookings.
type AttemptRequest struct {
	PatientID   string `json:"patient_id"`
	TherapistID string `json:"therapist_id"`
	Date        string `json:"date"`
	Start       string `json:"start"`
}

// ErrorResponse carries the patient-facing guidance for a failed attempt.
type ErrorResponse struct {
	Kind     Kind   `json:"kind"`
	Guidance string `json:"guidance"`
}

// AttemptBooking handles POST /bookings.
func (h *Handler) AttemptBooking(w http.ResponseWriter, r *http.Request) {
	var body AttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Kind: KindInvalidArgument, Guidance: "invalid request body",
		})
		return
	}
	req, err := body.toRequest()
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Kind: KindInvalidArgument, Guidance: err.Error(),
		})
		return
	}

	outcome, err := h.workflow.AttemptBooking(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if outcome.PurchaseRequired {
		h.writeJSON(w, http.StatusPaymentRequired, outcome)
		return
	}
	h.writeJSON(w, http.StatusCreated, outcome)
}

func (b AttemptRequest) toRequest() (Request, error) {
	patientID, err := uuid.Parse(b.PatientID)
	if err != nil {
		return Request{}, errors.New("invalid patient_id")
	}
	therapistID, err := uuid.Parse(b.TherapistID)
	if err != nil {
		return Request{}, errors.New("invalid therapist_id")
	}
	day, err := time.Parse(time.DateOnly, b.Date)
	if err != nil {
		return Request{}, errors.New("invalid date, expected YYYY-MM-DD")
	}
	start, err := availability.ParseMinute(b.Start)
	if err != nil {
		return Request{}, errors.New("invalid start, expected HH:MM")
	}
	return Request{
		PatientID:   patientID,
		TherapistID: therapistID,
		Day:         day,
		StartMinute: start,
	}, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var berr *BookingError
	if !errors.As(err, &berr) {
		h.logger.Error("booking attempt failed", "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Kind: KindUnavailable, Guidance: "temporarily unavailable, please retry",
		})
		return
	}

	status := http.StatusServiceUnavailable
	switch berr.Kind {
	case KindInvalidArgument:
		status = http.StatusBadRequest
	case KindNotFound:
		status = http.StatusNotFound
	case KindSlotUnavailable:
		status = http.StatusConflict
	case KindInsufficientCredits:
		status = http.StatusPaymentRequired
	case KindInvariantViolation:
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("booking attempt failed", "kind", berr.Kind, "error", berr)
	}
	h.writeJSON(w, status, ErrorResponse{Kind: berr.Kind, Guidance: berr.Guidance})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
