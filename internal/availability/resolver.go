package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/wellhavenhq/telehealth-platform/internal/therapists"
	"github.com/wellhavenhq/telehealth-platform/pkg/logging"
)

// Resolver turns recurring rules plus exceptions into concrete dates and
// slots. It never mutates state.
type Resolver struct {
	repo      Repository
	booked    BookedSlotSource
	directory therapists.Directory
	logger    *logging.Logger
	now       func() time.Time
}

// NewResolver constructs a resolver.
func NewResolver(repo Repository, booked BookedSlotSource, directory therapists.Directory, logger *logging.Logger) *Resolver {
	if repo == nil {
		panic("availability: repository required")
	}
	if booked == nil {
		panic("availability: booked slot source required")
	}
	if directory == nil {
		panic("availability: therapist directory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{
		repo:      repo,
		booked:    booked,
		directory: directory,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the time source. Tests pin "now" with this.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	if now != nil {
		r.now = now
	}
	return r
}

// AvailableDates returns the dates in the given month that are not past,
// have at least one matching rule or an open exception, and are not closed
// by an exception. Ordered ascending.
func (r *Resolver) AvailableDates(ctx context.Context, therapistID uuid.UUID, year int, month time.Month) ([]time.Time, error) {
	if month < time.January || month > time.December {
		return nil, ErrInvalidMonth
	}
	if year < 2000 || year > 2200 {
		return nil, ErrInvalidDate
	}

	therapist, err := r.directory.Get(ctx, therapistID)
	if err != nil {
		return nil, err
	}

	rules, err := r.repo.ActiveRules(ctx, therapistID)
	if err != nil {
		return nil, err
	}
	ruleWeekdays := make(map[time.Weekday]bool, len(rules))
	for _, rule := range rules {
		ruleWeekdays[rule.Weekday] = true
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	next := first.AddDate(0, 1, 0)
	excs, err := r.repo.ExceptionsInRange(ctx, therapistID, first, next)
	if err != nil {
		return nil, err
	}
	excByDay := make(map[time.Time]DateException, len(excs))
	for _, exc := range excs {
		excByDay[exc.Day] = exc
	}

	today := DateOnly(r.now().In(therapist.Location()))

	var dates []time.Time
	for day := first; day.Before(next); day = day.AddDate(0, 0, 1) {
		if day.Before(today) {
			continue
		}
		if exc, ok := excByDay[day]; ok {
			if !exc.Closed {
				dates = append(dates, day)
			}
			continue
		}
		if ruleWeekdays[day.Weekday()] {
			dates = append(dates, day)
		}
	}
	return dates, nil
}

// TimeSlots returns the bookable slots for one therapist-day, ordered by
// start ascending. An empty result is not an error.
func (r *Resolver) TimeSlots(ctx context.Context, therapistID uuid.UUID, day time.Time) ([]TimeSlot, error) {
	if day.IsZero() {
		return nil, ErrInvalidDate
	}
	day = DateOnly(day)

	therapist, err := r.directory.Get(ctx, therapistID)
	if err != nil {
		return nil, err
	}

	windows, err := r.effectiveWindows(ctx, therapistID, day)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return []TimeSlot{}, nil
	}

	bookedStarts, err := r.booked.BookedStarts(ctx, therapistID, day)
	if err != nil {
		return nil, fmt.Errorf("availability: load booked starts: %w", err)
	}
	booked := make(map[int]bool, len(bookedStarts))
	for _, start := range bookedStarts {
		booked[start] = true
	}

	localNow := r.now().In(therapist.Location())
	today := DateOnly(localNow)
	nowMinute := localNow.Hour()*60 + localNow.Minute()
	if day.Before(today) {
		return []TimeSlot{}, nil
	}

	seen := make(map[int]bool)
	slots := []TimeSlot{}
	for _, w := range windows {
		// Back-to-back partition; a trailing remainder shorter than one
		// full duration is dropped.
		for start := w.StartMinute; start+w.DurationMinutes <= w.EndMinute; start += w.DurationMinutes {
			if seen[start] || booked[start] {
				continue
			}
			if day.Equal(today) && start <= nowMinute {
				continue
			}
			seen[start] = true
			slots = append(slots, TimeSlot{
				TherapistID:     therapistID,
				Day:             day,
				StartMinute:     start,
				EndMinute:       start + w.DurationMinutes,
				DurationMinutes: w.DurationMinutes,
				SessionType:     w.SessionType,
			})
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].StartMinute < slots[j].StartMinute })
	return slots, nil
}

// window is one effective open interval for a day.
type window struct {
	StartMinute     int
	EndMinute       int
	DurationMinutes int
	SessionType     SessionType
}

// effectiveWindows resolves the day's windows: an exception overrides all
// recurring rules for that date.
func (r *Resolver) effectiveWindows(ctx context.Context, therapistID uuid.UUID, day time.Time) ([]window, error) {
	exc, err := r.repo.ExceptionForDay(ctx, therapistID, day)
	if err != nil {
		return nil, err
	}
	if exc != nil {
		if exc.Closed {
			return nil, nil
		}
		sessionType := exc.SessionType
		if sessionType == "" {
			sessionType = SessionIndividual
		}
		return []window{{
			StartMinute:     exc.StartMinute,
			EndMinute:       exc.EndMinute,
			DurationMinutes: exc.DurationMinutes,
			SessionType:     sessionType,
		}}, nil
	}

	rules, err := r.repo.ActiveRules(ctx, therapistID)
	if err != nil {
		return nil, err
	}
	var windows []window
	for _, rule := range rules {
		if rule.Weekday != day.Weekday() {
			continue
		}
		windows = append(windows, window{
			StartMinute:     rule.StartMinute,
			EndMinute:       rule.EndMinute,
			DurationMinutes: rule.DurationMinutes,
			SessionType:     rule.SessionType,
		})
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].StartMinute < windows[j].StartMinute })
	return windows, nil
}
