package bookings

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellhavenhq/telehealth-platform/pkg/logging"
)

func newHandlerFixture(t *testing.T) (*chi.Mux, *Guard) {
	t.Helper()
	guard, _ := newGuard(t)
	handler := NewHandler(guard, logging.Default())
	r := chi.NewRouter()
	r.Get("/bookings/{bookingID}", handler.GetBooking)
	r.Post("/admin/bookings/{bookingID}/cancel", handler.CancelBooking)
	r.Post("/admin/bookings/{bookingID}/complete", handler.CompleteBooking)
	r.Post("/admin/bookings/{bookingID}/no-show", handler.MarkNoShow)
	return r, guard
}

func confirmedBooking(t *testing.T, guard *Guard) *Booking {
	t.Helper()
	b, err := guard.TryReserveSlot(t.Context(), uuid.New(), testSlot(uuid.New()))
	require.NoError(t, err)
	confirmed, err := guard.ConfirmBooking(t.Context(), b.ID, uuid.New())
	require.NoError(t, err)
	return confirmed
}

func TestGetBookingByID(t *testing.T) {
	r, guard := newHandlerFixture(t)
	b := confirmedBooking(t, guard)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bookings/"+b.ID.String(), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, StatusConfirmed, got.Status)
}

func TestGetBookingNotFound(t *testing.T) {
	r, _ := newHandlerFixture(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bookings/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCancel(t *testing.T) {
	r, guard := newHandlerFixture(t)
	b := confirmedBooking(t, guard)

	body := strings.NewReader(`{"reason":"therapist unavailable","by":"therapist"}`)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/bookings/"+b.ID.String()+"/cancel", body))

	require.Equal(t, http.StatusOK, rec.Code)
	var got Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, StatusCancelled, got.Status)
	require.NotNil(t, got.CancelledBy)
	assert.Equal(t, "therapist", *got.CancelledBy)
}

func TestAdminCompleteThenNoShowConflicts(t *testing.T) {
	r, guard := newHandlerFixture(t)
	b := confirmedBooking(t, guard)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/bookings/"+b.ID.String()+"/complete", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/bookings/"+b.ID.String()+"/no-show", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminCancelBadID(t *testing.T) {
	r, _ := newHandlerFixture(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/bookings/nope/cancel", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
