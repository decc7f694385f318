package user

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	MinTimezoneOffset = -12
	MaxTimezoneOffset = 14
)

var ErrUserNotFound = errors.New("user not found")
var ErrInvalidOffset = fmt.Errorf("timezone offset must be between %d and %d", MinTimezoneOffset, MaxTimezoneOffset)

// User is a bot user identified by their Telegram ID.
// TimezoneOffset is a fixed hour offset from UTC, not a named zone.
type User struct {
	ID             int64
	TimezoneOffset int
	Language       sql.NullString // To handle an unset language
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Location returns the user's fixed-offset location.
func (u *User) Location() *time.Location {
	return Zone(u.TimezoneOffset)
}

// LanguageOr returns the user's language or fallback when none is set.
func (u *User) LanguageOr(fallback string) string {
	if u == nil || !u.Language.Valid || u.Language.String == "" {
		return fallback
	}
	return u.Language.String
}

// ValidateOffset checks that offsetHours is within the supported range.
func ValidateOffset(offsetHours int) error {
	if offsetHours < MinTimezoneOffset || offsetHours > MaxTimezoneOffset {
		return ErrInvalidOffset
	}
	return nil
}

// Zone returns a fixed zone for the given hour offset, named like "UTC+3".
func Zone(offsetHours int) *time.Location {
	return time.FixedZone(ZoneName(offsetHours), offsetHours*60*60)
}

func ZoneName(offsetHours int) string {
	if offsetHours == 0 {
		return "UTC"
	}
	return fmt.Sprintf("UTC%+d", offsetHours)
}
