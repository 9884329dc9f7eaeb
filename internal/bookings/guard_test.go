package bookings

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellhavenhq/telehealth-platform/internal/availability"
	"github.com/wellhavenhq/telehealth-platform/pkg/logging"
)

func testSlot(therapistID uuid.UUID) availability.TimeSlot {
	return availability.TimeSlot{
		TherapistID:     therapistID,
		Day:             time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC),
		StartMinute:     540,
		EndMinute:       600,
		DurationMinutes: 60,
		SessionType:     availability.SessionIndividual,
	}
}

func newGuard(t *testing.T) (*Guard, *InMemoryRepository) {
	t.Helper()
	repo := NewInMemoryRepository()
	fixed := time.Date(2026, time.September, 4, 12, 0, 0, 0, time.UTC)
	guard := NewGuard(repo, logging.Default(), WithClock(func() time.Time { return fixed }))
	return guard, repo
}

func TestTryReserveSlot(t *testing.T) {
	guard, _ := newGuard(t)
	therapistID := uuid.New()

	b, err := guard.TryReserveSlot(t.Context(), uuid.New(), testSlot(therapistID))
	require.NoError(t, err)
	assert.Equal(t, StatusPendingPayment, b.Status)
	assert.Equal(t, therapistID, b.TherapistID)
	assert.Equal(t, 540, b.StartMinute)
	assert.Equal(t, 600, b.EndMinute())
	assert.Nil(t, b.CreditID)
}

func TestTryReserveSlotConflict(t *testing.T) {
	guard, _ := newGuard(t)
	slot := testSlot(uuid.New())

	_, err := guard.TryReserveSlot(t.Context(), uuid.New(), slot)
	require.NoError(t, err)

	_, err = guard.TryReserveSlot(t.Context(), uuid.New(), slot)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestTryReserveSlotConcurrentOneWinner(t *testing.T) {
	guard, _ := newGuard(t)
	slot := testSlot(uuid.New())

	const callers = 16
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := guard.TryReserveSlot(t.Context(), uuid.New(), slot)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotUnavailable):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, conflicts)
}

func TestReleaseFreesSlotForOthers(t *testing.T) {
	guard, _ := newGuard(t)
	slot := testSlot(uuid.New())

	first, err := guard.TryReserveSlot(t.Context(), uuid.New(), slot)
	require.NoError(t, err)
	require.NoError(t, guard.ReleaseSlot(t.Context(), first.ID, "payment abandoned"))

	second, err := guard.TryReserveSlot(t.Context(), uuid.New(), slot)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestConfirmBooking(t *testing.T) {
	guard, _ := newGuard(t)
	creditID := uuid.New()

	b, err := guard.TryReserveSlot(t.Context(), uuid.New(), testSlot(uuid.New()))
	require.NoError(t, err)

	confirmed, err := guard.ConfirmBooking(t.Context(), b.ID, creditID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.CreditID)
	assert.Equal(t, creditID, *confirmed.CreditID)
	assert.NotNil(t, confirmed.ConfirmedAt)
}

func TestConfirmBookingTwiceFails(t *testing.T) {
	guard, _ := newGuard(t)

	b, err := guard.TryReserveSlot(t.Context(), uuid.New(), testSlot(uuid.New()))
	require.NoError(t, err)

	_, err = guard.ConfirmBooking(t.Context(), b.ID, uuid.New())
	require.NoError(t, err)

	_, err = guard.ConfirmBooking(t.Context(), b.ID, uuid.New())
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestReleaseSlotOnlyFromPending(t *testing.T) {
	guard, _ := newGuard(t)

	b, err := guard.TryReserveSlot(t.Context(), uuid.New(), testSlot(uuid.New()))
	require.NoError(t, err)
	_, err = guard.ConfirmBooking(t.Context(), b.ID, uuid.New())
	require.NoError(t, err)

	err = guard.ReleaseSlot(t.Context(), b.ID, "late failure")
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestCancelConfirmedBooking(t *testing.T) {
	guard, _ := newGuard(t)

	b, err := guard.TryReserveSlot(t.Context(), uuid.New(), testSlot(uuid.New()))
	require.NoError(t, err)
	_, err = guard.ConfirmBooking(t.Context(), b.ID, uuid.New())
	require.NoError(t, err)

	cancelled, err := guard.Cancel(t.Context(), b.ID, "patient request", "patient")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, "patient", *cancelled.CancelledBy)
}

func TestCompleteAndNoShow(t *testing.T) {
	guard, _ := newGuard(t)

	b1, err := guard.TryReserveSlot(t.Context(), uuid.New(), testSlot(uuid.New()))
	require.NoError(t, err)
	_, err = guard.ConfirmBooking(t.Context(), b1.ID, uuid.New())
	require.NoError(t, err)

	done, err := guard.Complete(t.Context(), b1.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)

	// completed is terminal
	_, err = guard.MarkNoShow(t.Context(), b1.ID)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	slot2 := testSlot(uuid.New())
	b2, err := guard.TryReserveSlot(t.Context(), uuid.New(), slot2)
	require.NoError(t, err)
	_, err = guard.ConfirmBooking(t.Context(), b2.ID, uuid.New())
	require.NoError(t, err)

	missed, err := guard.MarkNoShow(t.Context(), b2.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, missed.Status)
}

func TestGuardUnknownBooking(t *testing.T) {
	guard, _ := newGuard(t)
	_, err := guard.ConfirmBooking(t.Context(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestBookedStartsOnlyActive(t *testing.T) {
	guard, repo := newGuard(t)
	therapistID := uuid.New()
	day := time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)

	slotA := testSlot(therapistID)
	slotB := testSlot(therapistID)
	slotB.StartMinute = 600

	a, err := guard.TryReserveSlot(t.Context(), uuid.New(), slotA)
	require.NoError(t, err)
	_, err = guard.TryReserveSlot(t.Context(), uuid.New(), slotB)
	require.NoError(t, err)

	require.NoError(t, guard.ReleaseSlot(t.Context(), a.ID, "abandoned"))

	starts, err := repo.BookedStarts(t.Context(), therapistID, day)
	require.NoError(t, err)
	assert.Equal(t, []int{600}, starts)
}

func TestStateMachineTable(t *testing.T) {
	cases := []struct {
		from, to Status
		legal    bool
	}{
		{StatusPendingPayment, StatusConfirmed, true},
		{StatusPendingPayment, StatusCancelled, true},
		{StatusPendingPayment, StatusCompleted, false},
		{StatusPendingPayment, StatusNoShow, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusNoShow, true},
		{StatusConfirmed, StatusPendingPayment, false},
		{StatusCancelled, StatusPendingPayment, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusNoShow, StatusConfirmed, false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.legal, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}
