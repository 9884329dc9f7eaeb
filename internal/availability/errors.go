package availability

import "errors"

var (
	// ErrInvalidWeekday is returned when a rule names a weekday outside Sunday..Saturday.
	ErrInvalidWeekday = errors.New("weekday must be between Sunday and Saturday")

	// ErrInvalidWindow is returned when a window does not satisfy start < end within one day.
	ErrInvalidWindow = errors.New("window start must precede end within a single day")

	// ErrInvalidDuration is returned when the session duration does not fit the window.
	ErrInvalidDuration = errors.New("session duration must be positive and fit the window")

	// ErrInvalidMonth is returned for month values outside 1..12.
	ErrInvalidMonth = errors.New("month must be between 1 and 12")

	// ErrInvalidDate is returned for malformed or zero dates.
	ErrInvalidDate = errors.New("date is malformed")
)
