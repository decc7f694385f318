package birthday

import (
	"errors"
	"fmt"
	"time"

	"reminder_bot/internal/domain/user"
)

var ErrInvalidDate = errors.New("invalid birthday date")

// IsLeapYear reports whether year is a Gregorian leap year.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns the number of days in month for a leap or common year.
func DaysInMonth(month int, leap bool) int {
	switch time.Month(month) {
	case time.February:
		if leap {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

// ValidateDate checks a birthday month/day. Feb 29 is always accepted.
func ValidateDate(month, day int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidDate, month)
	}
	if day < 1 || day > DaysInMonth(month, true) {
		return fmt.Errorf("%w: day %d of month %d", ErrInvalidDate, day, month)
	}
	return nil
}

// NextOccurrence resolves month/day in the fixed offset into the next instant
// at or after now. The wall-clock time of day is taken from now, so a birthday
// falling on today's date resolves to now itself. Feb 29 moves forward to the
// next leap year. The result is never before now.
func NextOccurrence(month, day, offsetHours int, now time.Time) (time.Time, error) {
	if err := ValidateDate(month, day); err != nil {
		return time.Time{}, err
	}
	local := now.In(user.Zone(offsetHours))

	candidate := occurrenceIn(local.Year(), month, day, local)
	if !candidate.Before(local) {
		return candidate, nil
	}
	return occurrenceIn(local.Year()+1, month, day, local), nil
}

func occurrenceIn(year, month, day int, ref time.Time) time.Time {
	if month == 2 && day == 29 {
		for !IsLeapYear(year) {
			year++
		}
	}
	return time.Date(year, time.Month(month), day, ref.Hour(), ref.Minute(), ref.Second(), ref.Nanosecond(), ref.Location())
}

// SameDate reports whether a and b fall on the same calendar date in a's location.
func SameDate(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
