package reminder

import (
	"database/sql"
	"errors"
	"time"
)

var ErrReminderNotFound = errors.New("reminder not found")

// Reminder is a one-shot notification for a single user.
// ScheduledAt is an absolute UTC instant and never changes after creation.
type Reminder struct {
	ID          int64
	UserID      int64
	Text        string
	ScheduledAt time.Time
	CreatedAt   time.Time
	SourceRef   sql.NullString // Link to the originating message, if any
	Dropped     bool           // Delivery failed; kept for audit, never pending again
}

// IsPending reports whether the reminder still waits for delivery.
func (r *Reminder) IsPending() bool {
	return !r.Dropped
}
