package user

import (
	"context"
)

// Repository defines the operations for persisting and retrieving User entities.
type Repository interface {
	GetOrCreate(ctx context.Context, id int64) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	UpdateTimezone(ctx context.Context, id int64, offsetHours int) error // Only touches timezone_offset
	UpdateLanguage(ctx context.Context, id int64, language string) error // Empty language clears it
}
