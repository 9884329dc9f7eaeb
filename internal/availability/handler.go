package availability

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wellhavenhq/telehealth-platform/internal/therapists"
	"github.com/wellhavenhq/telehealth-platform/pkg/logging"
)

// Handler serves the availability read endpoints.
type Handler struct {
	resolver *Resolver
	cache    *SlotCache
	logger   *logging.Logger
}

// NewHandler creates an availability handler. The cache is optional.
func NewHandler(resolver *Resolver, cache *SlotCache, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{resolver: resolver, cache: cache, logger: logger}
}

// DatesResponse lists the bookable dates of one month.
type DatesResponse struct {
	TherapistID string   `json:"therapist_id"`
	Year        int      `json:"year"`
	Month       int      `json:"month"`
	Dates       []string `json:"dates"`
}

// Dates handles GET /therapists/{therapistID}/availability/dates?year=&month=.
func (h *Handler) Dates(w http.ResponseWriter, r *http.Request) {
	therapistID, err := uuid.Parse(chi.URLParam(r, "therapistID"))
	if err != nil {
		http.Error(w, "invalid therapist id", http.StatusBadRequest)
		return
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		http.Error(w, "year is required", http.StatusBadRequest)
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		http.Error(w, "month is required", http.StatusBadRequest)
		return
	}

	dates, err := h.resolver.AvailableDates(r.Context(), therapistID, year, time.Month(month))
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := DatesResponse{
		TherapistID: therapistID.String(),
		Year:        year,
		Month:       month,
		Dates:       make([]string, 0, len(dates)),
	}
	for _, d := range dates {
		resp.Dates = append(resp.Dates, d.Format("2006-01-02"))
	}
	writeJSON(w, http.StatusOK, resp)
}

// SlotView is the wire shape of one bookable slot.
type SlotView struct {
	Start           string `json:"start"`
	End             string `json:"end"`
	DurationMinutes int    `json:"duration_minutes"`
	SessionType     string `json:"session_type"`
}

// SlotsResponse lists the open slots for one therapist-day.
type SlotsResponse struct {
	TherapistID string     `json:"therapist_id"`
	Date        string     `json:"date"`
	Slots       []SlotView `json:"slots"`
}

// Slots handles GET /therapists/{therapistID}/availability/slots?date=.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	therapistID, err := uuid.Parse(chi.URLParam(r, "therapistID"))
	if err != nil {
		http.Error(w, "invalid therapist id", http.StatusBadRequest)
		return
	}
	day, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	slots, err := h.loadSlots(r, therapistID, day)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := SlotsResponse{
		TherapistID: therapistID.String(),
		Date:        day.Format("2006-01-02"),
		Slots:       make([]SlotView, 0, len(slots)),
	}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, SlotView{
			Start:           FormatMinute(s.StartMinute),
			End:             FormatMinute(s.EndMinute),
			DurationMinutes: s.DurationMinutes,
			SessionType:     string(s.SessionType),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) loadSlots(r *http.Request, therapistID uuid.UUID, day time.Time) ([]TimeSlot, error) {
	ctx := r.Context()
	if h.cache != nil {
		if slots, ok, err := h.cache.Get(ctx, therapistID, day); err == nil && ok {
			return slots, nil
		} else if err != nil {
			h.logger.Error("slot cache read failed", "error", err)
		}
	}
	slots, err := h.resolver.TimeSlots(ctx, therapistID, day)
	if err != nil {
		return nil, err
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, therapistID, day, slots); err != nil {
			h.logger.Error("slot cache write failed", "error", err)
		}
	}
	return slots, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, therapists.ErrNotFound):
		http.Error(w, "therapist not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidMonth), errors.Is(err, ErrInvalidDate):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("availability request failed", "error", err)
		http.Error(w, "temporarily unavailable, please retry", http.StatusServiceUnavailable)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
