package reminder

import (
	"context"
)

// Repository defines operations for Reminder persistence.
type Repository interface {
	Create(ctx context.Context, r *Reminder) error
	GetByID(ctx context.Context, id int64) (*Reminder, error)
	ListByUser(ctx context.Context, userID int64) ([]*Reminder, error) // Pending only, earliest first
	Delete(ctx context.Context, id int64) error
	MarkDropped(ctx context.Context, id int64) error

	// GetEarliestPending returns the pending reminder with the smallest ScheduledAt,
	// ties broken by the smaller ID. It returns nil, nil when nothing is pending.
	GetEarliestPending(ctx context.Context) (*Reminder, error)
}
