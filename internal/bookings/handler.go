package bookings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wellhavenhq/telehealth-platform/pkg/logging"
)

// Handler exposes booking reads and the admin status transitions.
// Transitions go through the Guard so the state machine is enforced
// the same way for admin tooling as for the workflow.
type Handler struct {
	guard  *Guard
	logger *logging.Logger
}

// NewHandler creates a bookings handler.
func NewHandler(guard *Guard, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{guard: guard, logger: logger}
}

// GetBooking handles GET /bookings/{bookingID}.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	b, err := h.guard.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, b)
}

// CancelRequest is the body for POST /bookings/{bookingID}/cancel.
type CancelRequest struct {
	Reason string `json:"reason"`
	By     string `json:"by"`
}

// CancelBooking handles POST /admin/bookings/{bookingID}/cancel.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.By == "" {
		req.By = "admin"
	}
	b, err := h.guard.Cancel(r.Context(), id, req.Reason, req.By)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, b)
}

// CompleteBooking handles POST /admin/bookings/{bookingID}/complete.
func (h *Handler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	b, err := h.guard.Complete(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, b)
}

// MarkNoShow handles POST /admin/bookings/{bookingID}/no-show.
func (h *Handler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	b, err := h.guard.MarkNoShow(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, b)
}

func (h *Handler) bookingID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBookingNotFound):
		http.Error(w, "booking not found", http.StatusNotFound)
	case errors.Is(err, ErrIllegalTransition):
		http.Error(w, "status transition not allowed", http.StatusConflict)
	default:
		h.logger.Error("booking request failed", "error", err)
		http.Error(w, "temporarily unavailable, please retry", http.StatusServiceUnavailable)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
