package birthday

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	MaxSubjectNameLength = 100
	MinEarlyNotifyDays   = 1
	MaxEarlyNotifyDays   = 365
)

var ErrBirthdayNotFound = errors.New("birthday not found")
var ErrDuplicateBirthday = errors.New("birthday for this subject already exists")
var ErrInvalidSubject = errors.New("birthday subject must be exactly one of a user ID or a name")
var ErrInvalidLeapPolicy = errors.New("unknown leap year policy")
var ErrInvalidEarlyNotifyDays = fmt.Errorf("early notification must be between %d and %d days", MinEarlyNotifyDays, MaxEarlyNotifyDays)

// LeapPolicy decides when a Feb 29 birthday is celebrated in non-leap years.
type LeapPolicy string

const (
	LeapPolicyUnset      LeapPolicy = ""
	LeapPolicyMar1       LeapPolicy = "notify_on_mar1"
	LeapPolicyFeb28      LeapPolicy = "notify_on_feb28"
	LeapPolicySuppressed LeapPolicy = "suppressed"
)

func (p LeapPolicy) Valid() bool {
	switch p {
	case LeapPolicyUnset, LeapPolicyMar1, LeapPolicyFeb28, LeapPolicySuppressed:
		return true
	default:
		return false
	}
}

// Subject is whose birthday it is: another known user or a free-text name.
type Subject struct {
	UserID int64
	Name   string
}

func UserSubject(userID int64) Subject { return Subject{UserID: userID} }
func NameSubject(name string) Subject  { return Subject{Name: strings.TrimSpace(name)} }

func (s Subject) IsUser() bool { return s.UserID != 0 }

func (s Subject) Validate() error {
	hasUser := s.UserID != 0
	hasName := s.Name != ""
	if hasUser == hasName {
		return ErrInvalidSubject
	}
	if len([]rune(s.Name)) > MaxSubjectNameLength {
		return fmt.Errorf("%w: name longer than %d characters", ErrInvalidSubject, MaxSubjectNameLength)
	}
	return nil
}

func (s Subject) String() string {
	if s.IsUser() {
		return fmt.Sprintf("user %d", s.UserID)
	}
	return s.Name
}

// Birthday is a yearly notification owned by UserID.
// LastNotifiedYear and LastEarlyNotifiedYear are only advanced by the sweep.
type Birthday struct {
	ID                    int64
	UserID                int64
	Subject               Subject
	Month                 int
	Day                   int
	LeapPolicy            LeapPolicy
	LastNotifiedYear      int // 0 = never
	EarlyNotifyDays       int // 0 = early notification disabled
	LastEarlyNotifiedYear int // 0 = never
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// IsLeapDay reports whether the birthday falls on Feb 29.
func (b *Birthday) IsLeapDay() bool {
	return b.Month == 2 && b.Day == 29
}

// QualifiesOn reports whether the regular notification should fire on the
// calendar date of today (already expressed in the owner's offset).
func (b *Birthday) QualifiesOn(today time.Time) bool {
	month, day := int(today.Month()), today.Day()
	if !b.IsLeapDay() {
		return b.Month == month && b.Day == day
	}
	if IsLeapYear(today.Year()) {
		return month == 2 && day == 29
	}
	switch b.LeapPolicy {
	case LeapPolicyMar1:
		return month == 3 && day == 1
	case LeapPolicyFeb28:
		return month == 2 && day == 28
	default:
		return false
	}
}

// EarlyNoticeDate returns the next occurrence of the birthday and the date on
// which its early notice is due. The early date keeps now's time of day.
func (b *Birthday) EarlyNoticeDate(offsetHours int, now time.Time) (target, early time.Time, err error) {
	if b.EarlyNotifyDays <= 0 {
		return time.Time{}, time.Time{}, ErrInvalidEarlyNotifyDays
	}
	target, err = NextOccurrence(b.Month, b.Day, offsetHours, now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return target, target.AddDate(0, 0, -b.EarlyNotifyDays), nil
}

func ValidateEarlyNotifyDays(days int) error {
	if days < MinEarlyNotifyDays || days > MaxEarlyNotifyDays {
		return ErrInvalidEarlyNotifyDays
	}
	return nil
}
