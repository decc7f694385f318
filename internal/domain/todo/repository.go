package todo

import "context"

// Repository defines operations for Task persistence.
type Repository interface {
	Create(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id int64) (*Task, error)
	// ListByUser returns the user's tasks, newest first. Done tasks are
	// included only when includeDone is set.
	ListByUser(ctx context.Context, userID int64, includeDone bool) ([]*Task, error)
	MarkDone(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}
