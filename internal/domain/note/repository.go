package note

import "context"

// Repository defines operations for Note persistence.
type Repository interface {
	Create(ctx context.Context, n *Note) error
	GetByID(ctx context.Context, id int64) (*Note, error)
	ListByUser(ctx context.Context, userID int64) ([]*Note, error) // Newest first
	Delete(ctx context.Context, id int64) error
}
